package storage

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/live-labs/passlock/internal/crypto"
)

// Bucket names
var (
	ConfigBucket            = []byte("config")             // Format version, KDF params, verifier, timestamps - unencrypted
	IndexBucket             = []byte("index")              // Public entry metadata for list/search without a session
	BlobsBucket             = []byte("blobs")              // Sealed entry payloads keyed by entry ID
	SharesBucket            = []byte("shares")             // Share records (revocation state)
	EmergencyContactsBucket = []byte("emergency_contacts") // Trusted contacts with escrowed keys
	EmergencyRequestsBucket = []byte("emergency_requests") // Emergency access requests
)

// Config keys
var (
	ConfigVersion   = []byte("version")
	ConfigCreated   = []byte("created")
	ConfigModified  = []byte("modified")
	ConfigSalt      = []byte("salt")
	ConfigKDFParams = []byte("kdf_params")
	ConfigVerifier  = []byte("verifier")
	ConfigVaultID   = []byte("vault_id")
)

const FormatVersion = 1

// EntryMeta is the unencrypted listing metadata for one entry. Secret fields
// never appear here; they live in the sealed blob.
type EntryMeta struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Category  string     `json:"category,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Favorite  bool       `json:"favorite,omitempty"`
	TrashedAt *time.Time `json:"trashedAt,omitempty"`
}

// EntryRecord pairs listing metadata with the sealed payload.
type EntryRecord struct {
	Meta       EntryMeta
	Nonce      []byte
	Ciphertext []byte
}

// EmergencyContact is a trusted party allowed to request vault access after
// a waiting period. The escrow is the master key sealed under the contact's
// recovery key; the recovery key itself is never stored.
type EmergencyContact struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	WaitingPeriod    time.Duration `json:"waitingPeriod"`
	CreatedAt        time.Time     `json:"createdAt"`
	EscrowNonce      []byte        `json:"escrowNonce"`
	EscrowCiphertext []byte        `json:"escrowCiphertext"`
}

// EmergencyRequest is one contact's pending or decided access request.
type EmergencyRequest struct {
	ID          string     `json:"id"`
	ContactID   string     `json:"contactId"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requestedAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
}

// ShareRecord tracks a share's revocation state. The token and ephemeral key
// are never stored here.
type ShareRecord struct {
	ID        string    `json:"id"`
	EntryID   string    `json:"entryId"`
	Recipient string    `json:"recipient"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Revoked   bool      `json:"revoked"`
}

// Storage provides bbolt-based persistence for the vault
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a vault database
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure for a new vault
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, IndexBucket, BlobsBucket, SharesBucket, EmergencyContactsBucket, EmergencyRequestsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte(fmt.Sprintf("%d", FormatVersion))); err != nil {
			return err
		}

		now := time.Now()
		created, _ := now.MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// HasCredential reports whether a master credential has been stored.
func (s *Storage) HasCredential() (bool, error) {
	var has bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVerifier) != nil {
			has = true
		}
		return nil
	})
	return has, err
}

// SetMasterCredential stores salt, KDF params and verifier in one transaction
// so a crash cannot leave them inconsistent with each other.
func (s *Storage) SetMasterCredential(salt []byte, params crypto.Params, verifier []byte) error {
	paramsData, err := cbor.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode kdf params: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigSalt, salt); err != nil {
			return err
		}
		if err := config.Put(ConfigKDFParams, paramsData); err != nil {
			return err
		}
		return config.Put(ConfigVerifier, verifier)
	})
}

// GetSalt retrieves the KDF salt
func (s *Storage) GetSalt() ([]byte, error) {
	return s.getConfigBytes(ConfigSalt, "salt")
}

// GetKDFParams retrieves the stored KDF cost parameters
func (s *Storage) GetKDFParams() (crypto.Params, error) {
	var params crypto.Params
	data, err := s.getConfigBytes(ConfigKDFParams, "kdf params")
	if err != nil {
		return params, err
	}
	if err := cbor.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("failed to decode kdf params: %w", err)
	}
	return params, nil
}

// GetVerifier retrieves the master key verifier
func (s *Storage) GetVerifier() ([]byte, error) {
	return s.getConfigBytes(ConfigVerifier, "verifier")
}

func (s *Storage) getConfigBytes(key []byte, what string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		v := config.Get(key)
		if v == nil {
			return fmt.Errorf("%s not found", what)
		}
		// Copy: the slice is only valid during the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// UpdateModified updates the last modified timestamp
func (s *Storage) UpdateModified() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		now := time.Now()
		modified, _ := now.MarshalBinary()
		return config.Put(ConfigModified, modified)
	})
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// GetOrCreateVaultID retrieves the existing vault ID or generates a new one
func (s *Storage) GetOrCreateVaultID() (string, error) {
	var vaultID string
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		if data := config.Get(ConfigVaultID); data != nil {
			vaultID = string(data)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if vaultID != "" {
		return vaultID, nil
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate vault ID: %w", err)
	}
	vaultID = hex.EncodeToString(b)

	err = s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		return config.Put(ConfigVaultID, []byte(vaultID))
	})
	if err != nil {
		return "", err
	}
	return vaultID, nil
}

// PutEntry writes an entry's metadata and sealed payload in one transaction.
func (s *Storage) PutEntry(rec EntryRecord) error {
	metaData, err := json.Marshal(rec.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal entry metadata: %w", err)
	}
	blob := encodeBlob(rec.Nonce, rec.Ciphertext)

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(IndexBucket).Put([]byte(rec.Meta.ID), metaData); err != nil {
			return err
		}
		return tx.Bucket(BlobsBucket).Put([]byte(rec.Meta.ID), blob)
	})
}

// PutEntryMeta rewrites only the listing metadata (trash flags, favorites).
func (s *Storage) PutEntryMeta(meta EntryMeta) error {
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal entry metadata: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(IndexBucket).Put([]byte(meta.ID), metaData)
	})
}

// GetEntryMeta retrieves one entry's listing metadata
func (s *Storage) GetEntryMeta(id string) (*EntryMeta, error) {
	var meta *EntryMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		data := index.Get([]byte(id))
		if data == nil {
			return nil
		}
		meta = &EntryMeta{}
		return json.Unmarshal(data, meta)
	})
	return meta, err
}

// GetBlob retrieves one entry's sealed payload
func (s *Storage) GetBlob(id string) (nonce, ciphertext []byte, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(BlobsBucket)
		if blobs == nil {
			return fmt.Errorf("blobs bucket not found")
		}
		data := blobs.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("entry payload not found")
		}
		data = append([]byte(nil), data...)
		nonce, ciphertext, err = decodeBlob(data)
		return err
	})
	return nonce, ciphertext, err
}

// DeleteEntry removes an entry's metadata and payload in one transaction
func (s *Storage) DeleteEntry(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(IndexBucket).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(BlobsBucket).Delete([]byte(id))
	})
}

// ListEntries returns all entry metadata
func (s *Storage) ListEntries() ([]EntryMeta, error) {
	var entries []EntryMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		return index.ForEach(func(k, v []byte) error {
			var meta EntryMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			entries = append(entries, meta)
			return nil
		})
	})
	return entries, err
}

// PutEntries writes a batch of entry records in one transaction. Used by
// master password changes and merge imports so readers never observe a
// half-written batch.
func (s *Storage) PutEntries(recs []EntryRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		blobs := tx.Bucket(BlobsBucket)
		for _, rec := range recs {
			metaData, err := json.Marshal(rec.Meta)
			if err != nil {
				return fmt.Errorf("failed to marshal entry metadata: %w", err)
			}
			if err := index.Put([]byte(rec.Meta.ID), metaData); err != nil {
				return err
			}
			if err := blobs.Put([]byte(rec.Meta.ID), encodeBlob(rec.Nonce, rec.Ciphertext)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceAllEntries drops every stored entry and writes the given batch in
// one transaction.
func (s *Storage) ReplaceAllEntries(recs []EntryRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{IndexBucket, BlobsBucket} {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		index := tx.Bucket(IndexBucket)
		blobs := tx.Bucket(BlobsBucket)
		for _, rec := range recs {
			metaData, err := json.Marshal(rec.Meta)
			if err != nil {
				return fmt.Errorf("failed to marshal entry metadata: %w", err)
			}
			if err := index.Put([]byte(rec.Meta.ID), metaData); err != nil {
				return err
			}
			if err := blobs.Put([]byte(rec.Meta.ID), encodeBlob(rec.Nonce, rec.Ciphertext)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutShare stores a share record
func (s *Storage) PutShare(rec ShareRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal share record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(SharesBucket).Put([]byte(rec.ID), data)
	})
}

// GetShare retrieves a share record by ID
func (s *Storage) GetShare(id string) (*ShareRecord, error) {
	var rec *ShareRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		shares := tx.Bucket(SharesBucket)
		if shares == nil {
			return fmt.Errorf("shares bucket not found")
		}
		data := shares.Get([]byte(id))
		if data == nil {
			return nil
		}
		rec = &ShareRecord{}
		return json.Unmarshal(data, rec)
	})
	return rec, err
}

// ListShares returns all share records
func (s *Storage) ListShares() ([]ShareRecord, error) {
	var recs []ShareRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		shares := tx.Bucket(SharesBucket)
		if shares == nil {
			return nil
		}
		return shares.ForEach(func(k, v []byte) error {
			var rec ShareRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// PutEmergencyContact stores a contact and its escrowed key. The bucket is
// created on demand so vaults from before this feature keep working.
func (s *Storage) PutEmergencyContact(rec EmergencyContact) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal emergency contact: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(EmergencyContactsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// GetEmergencyContact retrieves one contact, or nil when unknown
func (s *Storage) GetEmergencyContact(id string) (*EmergencyContact, error) {
	var rec *EmergencyContact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(EmergencyContactsBucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		rec = &EmergencyContact{}
		return json.Unmarshal(data, rec)
	})
	return rec, err
}

// DeleteEmergencyContact removes a contact and its escrow
func (s *Storage) DeleteEmergencyContact(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(EmergencyContactsBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
}

// ListEmergencyContacts returns all contacts
func (s *Storage) ListEmergencyContacts() ([]EmergencyContact, error) {
	var recs []EmergencyContact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(EmergencyContactsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec EmergencyContact
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// PutEmergencyRequest stores or updates an access request
func (s *Storage) PutEmergencyRequest(rec EmergencyRequest) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal emergency request: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(EmergencyRequestsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// GetEmergencyRequest retrieves one request, or nil when unknown
func (s *Storage) GetEmergencyRequest(id string) (*EmergencyRequest, error) {
	var rec *EmergencyRequest
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(EmergencyRequestsBucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		rec = &EmergencyRequest{}
		return json.Unmarshal(data, rec)
	})
	return rec, err
}

// ListEmergencyRequests returns all access requests
func (s *Storage) ListEmergencyRequests() ([]EmergencyRequest, error) {
	var recs []EmergencyRequest
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(EmergencyRequestsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec EmergencyRequest
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// Blob layout: 12-byte nonce followed by ciphertext (tag appended by GCM).

func encodeBlob(nonce, ciphertext []byte) []byte {
	blob := make([]byte, len(nonce)+len(ciphertext))
	copy(blob, nonce)
	copy(blob[len(nonce):], ciphertext)
	return blob
}

func decodeBlob(blob []byte) (nonce, ciphertext []byte, err error) {
	if len(blob) < crypto.NonceSize+crypto.TagSize {
		return nil, nil, fmt.Errorf("entry payload truncated")
	}
	return blob[:crypto.NonceSize], blob[crypto.NonceSize:], nil
}

// Compact creates a compacted copy of the database, removing unused space.
// Useful after purging entries.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
