package vault

import (
	"fmt"
	"os"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/storage"
)

// ChangeMasterPassword re-derives the master key under a fresh salt and the
// current default cost parameters, re-encrypts every entry payload and
// replaces the stored credential. The whole operation runs under the write
// lock, so a reader never observes a partially re-encrypted vault. The live
// session continues under the new key. Emergency escrows seal the old key
// and go stale; EmergencyUnlock rejects them until contacts are re-added.
func (v *Vault) ChangeMasterPassword(current, next []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.checkSessionLocked(); err != nil {
		return err
	}
	if len(next) == 0 {
		return fmt.Errorf("%w: empty master password", ErrValidation)
	}

	// Re-verify the current password rather than trusting the session alone.
	oldKey, err := v.deriveAndVerify(current)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(oldKey)

	// Phase 1: decrypt everything with the old key.
	entries, err := v.store.ListEntries()
	if err != nil {
		return err
	}
	type plainEntry struct {
		meta  storage.EntryMeta
		plain []byte
	}
	plains := make([]plainEntry, 0, len(entries))
	defer func() {
		for i := range plains {
			crypto.ClearBytes(plains[i].plain)
		}
	}()
	for _, meta := range entries {
		nonce, ciphertext, err := v.store.GetBlob(meta.ID)
		if err != nil {
			return fmt.Errorf("failed to load payload for %s: %w", meta.ID, err)
		}
		plain, err := crypto.Open(nonce, ciphertext, oldKey, []byte(meta.ID))
		if err != nil {
			return fmt.Errorf("failed to decrypt entry %s: %w", meta.ID, err)
		}
		plains = append(plains, plainEntry{meta: meta, plain: plain})
	}

	// Phase 2: derive the new credential and re-encrypt everything before
	// any write happens.
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}
	params := crypto.DefaultParams()
	newKey, err := crypto.DeriveKey(next, salt, params)
	if err != nil {
		return err
	}
	verifier, err := crypto.MakeVerifier(newKey)
	if err != nil {
		crypto.ClearBytes(newKey)
		return err
	}

	recs := make([]storage.EntryRecord, 0, len(plains))
	for _, pe := range plains {
		nonce, ciphertext, err := crypto.Seal(pe.plain, newKey, []byte(pe.meta.ID))
		if err != nil {
			crypto.ClearBytes(newKey)
			return fmt.Errorf("failed to re-encrypt entry %s: %w", pe.meta.ID, err)
		}
		recs = append(recs, storage.EntryRecord{Meta: pe.meta, Nonce: nonce, Ciphertext: ciphertext})
	}

	// Phase 3: write entries first, credential last. A crash in between
	// leaves the old verifier in place; the next password change retries.
	if err := v.store.PutEntries(recs); err != nil {
		crypto.ClearBytes(newKey)
		return fmt.Errorf("failed to store re-encrypted entries: %w", err)
	}
	if err := v.store.SetMasterCredential(salt, params, verifier); err != nil {
		crypto.ClearBytes(newKey)
		return fmt.Errorf("failed to store master credential: %w", err)
	}
	if err := v.store.UpdateModified(); err != nil {
		v.log.Warn().Err(err).Msg("failed to update modification time")
	}

	// Swap the session onto the new key.
	v.session.destroy()
	v.session = newSession(newKey, v.now(), v.maxSessionAge)

	v.log.Info().Int("entries", len(recs)).Msg("master password changed")
	return nil
}

// IntegrityReport summarizes a full-vault tag verification pass.
type IntegrityReport struct {
	Checked int
	Failed  []string // entry IDs whose tag did not validate
}

// VerifyIntegrity decrypt-checks every stored payload. Verification failures
// are reported explicitly, never silently skipped.
func (v *Vault) VerifyIntegrity() (*IntegrityReport, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, err := v.sessionKey()
	if err != nil {
		return nil, err
	}

	entries, err := v.store.ListEntries()
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{}
	for _, meta := range entries {
		report.Checked++
		nonce, ciphertext, err := v.store.GetBlob(meta.ID)
		if err != nil {
			report.Failed = append(report.Failed, meta.ID)
			continue
		}
		plain, err := crypto.Open(nonce, ciphertext, key, []byte(meta.ID))
		if err != nil {
			report.Failed = append(report.Failed, meta.ID)
			continue
		}
		crypto.ClearBytes(plain)
	}
	if len(report.Failed) > 0 {
		v.log.Error().Int("failed", len(report.Failed)).Msg("integrity verification found invalid entries")
	}
	return report, nil
}

// ImportMode selects how ApplyImport treats the existing store.
type ImportMode int

const (
	ImportMerge   ImportMode = iota // add to the current entries
	ImportReplace                   // drop the current entries first
)

// ImportResult reports what an import applied.
type ImportResult struct {
	Applied     int
	Skipped     int
	Overwritten int
}

// ApplyImport writes a batch of already-decrypted entries into the vault
// under new seals. Merge mode dedupes against existing entries by ID first,
// then by title+username: duplicates are skipped, or overwritten when
// overwrite is set. Replace mode swaps the whole store in one transaction.
func (v *Vault) ApplyImport(entries []*Entry, mode ImportMode, overwrite bool) (*ImportResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.checkSessionLocked()
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}

	seal := func(e *Entry) (storage.EntryRecord, error) {
		d := Draft{Username: e.Username, Password: e.Password, URL: e.URL, Notes: e.Notes}
		nonce, ciphertext, err := sealPayload(d, key, e.ID)
		if err != nil {
			return storage.EntryRecord{}, err
		}
		return storage.EntryRecord{Meta: e.EntryMeta, Nonce: nonce, Ciphertext: ciphertext}, nil
	}

	if mode == ImportReplace {
		recs := make([]storage.EntryRecord, 0, len(entries))
		for _, e := range entries {
			rec, err := seal(e)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		if err := v.store.ReplaceAllEntries(recs); err != nil {
			return nil, fmt.Errorf("failed to replace entries: %w", err)
		}
		result.Applied = len(recs)
		v.log.Info().Int("entries", result.Applied).Msg("vault replaced from import")
		return result, nil
	}

	existing, err := v.store.ListEntries()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]storage.EntryMeta, len(existing))
	byTitleUser := make(map[string]storage.EntryMeta, len(existing))
	for _, meta := range existing {
		byID[meta.ID] = meta
	}
	// title+username dedupe needs the decrypted username of existing entries
	for _, meta := range existing {
		e, err := v.readLocked(meta.ID, key)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt existing entry %s: %w", meta.ID, err)
		}
		byTitleUser[dedupeKey(meta.Title, e.Username)] = meta
	}

	var recs []storage.EntryRecord
	for _, e := range entries {
		dup, isDup := byID[e.ID]
		if !isDup {
			dup, isDup = byTitleUser[dedupeKey(e.Title, e.Username)]
		}
		if isDup {
			if !overwrite {
				result.Skipped++
				continue
			}
			// Keep the existing ID so references stay stable.
			e.EntryMeta.ID = dup.ID
			e.EntryMeta.CreatedAt = dup.CreatedAt
			result.Overwritten++
		} else {
			result.Applied++
		}
		e.EntryMeta.UpdatedAt = v.now()
		rec, err := seal(e)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := v.store.PutEntries(recs); err != nil {
		return nil, fmt.Errorf("failed to store imported entries: %w", err)
	}
	if err := v.store.UpdateModified(); err != nil {
		v.log.Warn().Err(err).Msg("failed to update modification time")
	}
	v.log.Info().
		Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("overwritten", result.Overwritten).
		Msg("import merged")
	return result, nil
}

func dedupeKey(title, username string) string {
	return title + "\x00" + username
}

// Destroy locks the vault, closes the store and deletes the database file.
// This is the only path back to the Uninitialized state.
func (v *Vault) Destroy() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lockLocked("destroy")
	path := v.store.Path()
	if err := v.store.Close(); err != nil {
		return err
	}
	v.state = Uninitialized
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove vault file: %w", err)
	}
	v.log.Warn().Msg("vault destroyed")
	return nil
}
