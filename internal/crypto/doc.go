// Package crypto implements key derivation and authenticated encryption for
// the vault: argon2id with versioned cost parameters, AES-256-GCM payload
// sealing with associated-data binding, and helpers for scrubbing secrets
// from memory.
package crypto
