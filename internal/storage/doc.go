// Package storage persists the vault in a single bbolt file. Listing
// metadata (titles, tags, categories, timestamps) is stored unencrypted so
// the CLI can list and filter without a live session; secret fields only
// ever reach this package as sealed blobs.
package storage
