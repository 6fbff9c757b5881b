// Package backup serializes a full vault snapshot into a self-contained
// encrypted archive. The archive carries its own salt and cost parameters so
// it can be restored on a machine that has never seen the live database, and
// it may be protected by a password different from the vault master password.
package backup

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/storage"
	"github.com/live-labs/passlock/internal/vault"
)

// ErrCorruption means the archive is structurally invalid or a record failed
// tag verification. A wrong backup password is indistinguishable from
// tampering and surfaces the same way.
var ErrCorruption = errors.New("backup archive corrupted or wrong password")

// ArchiveVersion is bumped on incompatible layout changes.
const ArchiveVersion = 1

// Record is one entry inside an archive: plaintext listing metadata plus the
// sealed secret fields, re-encrypted under the backup key.
type Record struct {
	Meta       storage.EntryMeta `cbor:"1,keyasint"`
	Nonce      []byte            `cbor:"2,keyasint"`
	Ciphertext []byte            `cbor:"3,keyasint"`
}

// Archive is the self-describing snapshot.
type Archive struct {
	FormatVersion int               `cbor:"1,keyasint"`
	Salt          []byte            `cbor:"2,keyasint"`
	Params        crypto.Params     `cbor:"3,keyasint"`
	CreatedAt     time.Time         `cbor:"4,keyasint"`
	Records       []Record          `cbor:"5,keyasint"`
}

// secretFields mirrors the sealed portion of an entry. Kept separate from the
// live store's payload layout on purpose: archives must stay restorable even
// if the database format moves on.
type secretFields struct {
	Username string `cbor:"1,keyasint"`
	Password string `cbor:"2,keyasint"`
	URL      string `cbor:"3,keyasint,omitempty"`
	Notes    string `cbor:"4,keyasint,omitempty"`
}

// Export re-encrypts a snapshot of the given decrypted entries under a key
// derived from the backup password with a fresh salt.
func Export(entries []*vault.Entry, password []byte, now time.Time) (*Archive, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("backup password must not be empty")
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	params := crypto.DefaultParams()
	key, err := crypto.DeriveKey(password, salt, params)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	archive := &Archive{
		FormatVersion: ArchiveVersion,
		Salt:          salt,
		Params:        params,
		CreatedAt:     now,
		Records:       make([]Record, 0, len(entries)),
	}
	for _, e := range entries {
		plain, err := cbor.Marshal(secretFields{
			Username: e.Username,
			Password: e.Password,
			URL:      e.URL,
			Notes:    e.Notes,
		})
		if err != nil {
			return nil, err
		}
		nonce, ciphertext, err := crypto.Seal(plain, key, []byte(e.ID))
		crypto.ClearBytes(plain)
		if err != nil {
			return nil, err
		}
		archive.Records = append(archive.Records, Record{
			Meta:       e.EntryMeta,
			Nonce:      nonce,
			Ciphertext: ciphertext,
		})
	}
	return archive, nil
}

// Encode serializes the archive for writing to a file.
func (a *Archive) Encode() ([]byte, error) {
	return cbor.Marshal(a)
}

// DecodeArchive parses archive bytes without decrypting anything.
func DecodeArchive(data []byte) (*Archive, error) {
	var a Archive
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	if a.FormatVersion != ArchiveVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruption, a.FormatVersion)
	}
	if err := a.Params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	return &a, nil
}

// Decrypt derives the backup key and validates and decrypts every record. Any
// single verification failure fails the whole archive: callers never get a
// partial result, so a restore can never half-apply.
func Decrypt(a *Archive, password []byte) ([]*vault.Entry, error) {
	key, err := crypto.DeriveKey(password, a.Salt, a.Params)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	entries := make([]*vault.Entry, 0, len(a.Records))
	for _, rec := range a.Records {
		plain, err := crypto.Open(rec.Nonce, rec.Ciphertext, key, []byte(rec.Meta.ID))
		if err != nil {
			return nil, fmt.Errorf("%w: record %s failed verification", ErrCorruption, rec.Meta.ID)
		}
		var secret secretFields
		decodeErr := cbor.Unmarshal(plain, &secret)
		crypto.ClearBytes(plain)
		if decodeErr != nil {
			return nil, fmt.Errorf("%w: record %s has a malformed payload", ErrCorruption, rec.Meta.ID)
		}
		entries = append(entries, &vault.Entry{
			EntryMeta: rec.Meta,
			Username:  secret.Username,
			Password:  secret.Password,
			URL:       secret.URL,
			Notes:     secret.Notes,
		})
	}
	return entries, nil
}
