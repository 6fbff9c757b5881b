package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/live-labs/passlock/internal/crypto"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.passlock")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Initialize(); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	return s
}

func TestOpenAndInitialize(t *testing.T) {
	s := openTestStorage(t)

	initialized, err := s.IsInitialized()
	if err != nil {
		t.Fatalf("Failed to check initialization: %v", err)
	}
	if !initialized {
		t.Error("Database should be initialized")
	}

	has, err := s.HasCredential()
	if err != nil {
		t.Fatalf("Failed to check credential: %v", err)
	}
	if has {
		t.Error("Fresh database should have no credential")
	}
}

func TestMasterCredentialRoundTrip(t *testing.T) {
	s := openTestStorage(t)

	salt := []byte("0123456789abcdef")
	params := crypto.DefaultParams()
	verifier := make([]byte, crypto.VerifierSize)
	verifier[0] = 0x42

	if err := s.SetMasterCredential(salt, params, verifier); err != nil {
		t.Fatalf("Failed to set credential: %v", err)
	}

	gotSalt, err := s.GetSalt()
	if err != nil {
		t.Fatalf("Failed to get salt: %v", err)
	}
	if string(gotSalt) != string(salt) {
		t.Errorf("Salt mismatch: got %v, want %v", gotSalt, salt)
	}

	gotParams, err := s.GetKDFParams()
	if err != nil {
		t.Fatalf("Failed to get params: %v", err)
	}
	if gotParams != params {
		t.Errorf("Params mismatch: got %+v, want %+v", gotParams, params)
	}

	gotVerifier, err := s.GetVerifier()
	if err != nil {
		t.Fatalf("Failed to get verifier: %v", err)
	}
	if string(gotVerifier) != string(verifier) {
		t.Error("Verifier mismatch")
	}

	has, err := s.HasCredential()
	if err != nil || !has {
		t.Errorf("Credential should exist: has=%v err=%v", has, err)
	}
}

func testRecord(id, title string) EntryRecord {
	now := time.Now()
	nonce := make([]byte, crypto.NonceSize)
	ciphertext := make([]byte, crypto.TagSize+8)
	return EntryRecord{
		Meta: EntryMeta{
			ID:        id,
			Title:     title,
			Category:  "email",
			Tags:      []string{"work"},
			CreatedAt: now,
			UpdatedAt: now,
		},
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}
}

func TestEntryCRUD(t *testing.T) {
	s := openTestStorage(t)

	rec := testRecord("id-1", "Mail")
	if err := s.PutEntry(rec); err != nil {
		t.Fatalf("PutEntry failed: %v", err)
	}

	meta, err := s.GetEntryMeta("id-1")
	if err != nil {
		t.Fatalf("GetEntryMeta failed: %v", err)
	}
	if meta == nil || meta.Title != "Mail" {
		t.Fatalf("Unexpected metadata: %+v", meta)
	}

	nonce, ciphertext, err := s.GetBlob("id-1")
	if err != nil {
		t.Fatalf("GetBlob failed: %v", err)
	}
	if len(nonce) != crypto.NonceSize || len(ciphertext) != crypto.TagSize+8 {
		t.Errorf("Blob shape wrong: nonce=%d ct=%d", len(nonce), len(ciphertext))
	}

	entries, err := s.ListEntries()
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	if err := s.DeleteEntry("id-1"); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	meta, err = s.GetEntryMeta("id-1")
	if err != nil {
		t.Fatalf("GetEntryMeta after delete failed: %v", err)
	}
	if meta != nil {
		t.Error("Entry should be gone")
	}
	if _, _, err := s.GetBlob("id-1"); err == nil {
		t.Error("Blob should be gone")
	}
}

func TestReplaceAllEntries(t *testing.T) {
	s := openTestStorage(t)

	if err := s.PutEntry(testRecord("old-1", "Old")); err != nil {
		t.Fatalf("PutEntry failed: %v", err)
	}

	recs := []EntryRecord{testRecord("new-1", "A"), testRecord("new-2", "B")}
	if err := s.ReplaceAllEntries(recs); err != nil {
		t.Fatalf("ReplaceAllEntries failed: %v", err)
	}

	entries, err := s.ListEntries()
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.ID == "old-1" {
			t.Error("Old entry should have been dropped")
		}
	}
}

func TestShareRecords(t *testing.T) {
	s := openTestStorage(t)

	rec := ShareRecord{
		ID:        "share-1",
		EntryID:   "id-1",
		Recipient: "bob@example.com",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.PutShare(rec); err != nil {
		t.Fatalf("PutShare failed: %v", err)
	}

	got, err := s.GetShare("share-1")
	if err != nil {
		t.Fatalf("GetShare failed: %v", err)
	}
	if got == nil || got.Recipient != "bob@example.com" || got.Revoked {
		t.Fatalf("Unexpected share record: %+v", got)
	}

	got.Revoked = true
	if err := s.PutShare(*got); err != nil {
		t.Fatalf("PutShare (revoke) failed: %v", err)
	}
	got, err = s.GetShare("share-1")
	if err != nil || got == nil || !got.Revoked {
		t.Fatalf("Share should be revoked: %+v err=%v", got, err)
	}

	missing, err := s.GetShare("nope")
	if err != nil {
		t.Fatalf("GetShare missing failed: %v", err)
	}
	if missing != nil {
		t.Error("Missing share should be nil")
	}
}

func TestVaultID(t *testing.T) {
	s := openTestStorage(t)

	id1, err := s.GetOrCreateVaultID()
	if err != nil {
		t.Fatalf("GetOrCreateVaultID failed: %v", err)
	}
	if id1 == "" {
		t.Fatal("Vault ID should not be empty")
	}
	id2, err := s.GetOrCreateVaultID()
	if err != nil {
		t.Fatalf("GetOrCreateVaultID failed: %v", err)
	}
	if id1 != id2 {
		t.Error("Vault ID should be stable")
	}
}

func TestCompact(t *testing.T) {
	s := openTestStorage(t)

	for i := 0; i < 10; i++ {
		if err := s.PutEntry(testRecord(string(rune('a'+i)), "Entry")); err != nil {
			t.Fatalf("PutEntry failed: %v", err)
		}
	}
	for i := 0; i < 9; i++ {
		if err := s.DeleteEntry(string(rune('a' + i))); err != nil {
			t.Fatalf("DeleteEntry failed: %v", err)
		}
	}

	if err := s.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	entries, err := s.ListEntries()
	if err != nil {
		t.Fatalf("ListEntries after compact failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry after compact, got %d", len(entries))
	}
}
