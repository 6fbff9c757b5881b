// Package vault is the core engine: the lock/unlock session lifecycle, the
// encrypted entry store and the operations everything else (CLI, importers,
// auditing, sharing, backup) is built on. A Vault value is an explicit
// context: it aggregates the persisted store and the current session, and
// every operation goes through it; there are no package-level globals.
//
// Concurrency: reads (List, Read, Search, ForEachEntry) may run concurrently
// with each other; structural writes (Create, Update, SoftDelete, Purge,
// ChangeMasterPassword, ApplyImport) are serialized by the vault's mutex.
// Once Update returns, any subsequent Read observes the new value.
package vault
