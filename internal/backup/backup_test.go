package backup

import (
	"errors"
	"testing"
	"time"

	"github.com/live-labs/passlock/internal/storage"
	"github.com/live-labs/passlock/internal/vault"
)

func testEntries() []*vault.Entry {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []*vault.Entry{
		{
			EntryMeta: storage.EntryMeta{ID: "e1", Title: "Mail", Category: "email", CreatedAt: now, UpdatedAt: now},
			Username:  "a@b.com",
			Password:  "Sup3r$ecret!",
			URL:       "https://mail.example.com",
		},
		{
			EntryMeta: storage.EntryMeta{ID: "e2", Title: "Bank", CreatedAt: now, UpdatedAt: now},
			Username:  "joe",
			Password:  "hunter2",
			Notes:     "branch code 4711",
		},
	}
}

func TestExportDecryptRoundtrip(t *testing.T) {
	entries := testEntries()
	archive, err := Export(entries, []byte("backup-pw"), time.Now())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// The archive must be restorable from bytes alone
	data, err := archive.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodeArchive(data)
	if err != nil {
		t.Fatalf("DecodeArchive failed: %v", err)
	}

	restored, err := Decrypt(decoded, []byte("backup-pw"))
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if len(restored) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(restored))
	}
	for i, e := range entries {
		r := restored[i]
		if r.ID != e.ID || r.Title != e.Title || r.Username != e.Username ||
			r.Password != e.Password || r.URL != e.URL || r.Notes != e.Notes {
			t.Errorf("Entry %d differs after roundtrip: %+v vs %+v", i, r, e)
		}
	}
}

func TestArchiveUsesOwnSalt(t *testing.T) {
	a1, err := Export(testEntries(), []byte("pw"), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	a2, err := Export(testEntries(), []byte("pw"), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if string(a1.Salt) == string(a2.Salt) {
		t.Fatal("Every export must draw a fresh salt")
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	archive, err := Export(testEntries(), []byte("backup-pw"), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(archive, []byte("wrong")); !errors.Is(err, ErrCorruption) {
		t.Fatalf("Expected ErrCorruption, got %v", err)
	}
}

func TestDecryptCorruptedRecordFailsWholeArchive(t *testing.T) {
	archive, err := Export(testEntries(), []byte("backup-pw"), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the second record only; the first is perfectly valid
	archive.Records[1].Ciphertext[0] ^= 0xff

	entries, err := Decrypt(archive, []byte("backup-pw"))
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("Expected ErrCorruption, got %v", err)
	}
	if entries != nil {
		t.Fatal("A failed decrypt must not return partial results")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeArchive([]byte("not an archive")); !errors.Is(err, ErrCorruption) {
		t.Fatalf("Expected ErrCorruption, got %v", err)
	}
}

func TestDecodeRejectsWeakParams(t *testing.T) {
	archive, err := Export(testEntries(), []byte("pw"), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	archive.Params.MemoryKiB = 1 // below the safety floor
	data, err := archive.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeArchive(data); !errors.Is(err, ErrCorruption) {
		t.Fatalf("Expected ErrCorruption for weak params, got %v", err)
	}
}
