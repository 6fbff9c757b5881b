package keyring

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestSaveGetDelete(t *testing.T) {
	keyring.MockInit()

	if HasPassword("vault-a") {
		t.Fatal("Fresh keyring should hold nothing")
	}
	if _, err := GetPassword("vault-a"); !errors.Is(err, ErrNotStored) {
		t.Fatalf("Expected ErrNotStored, got %v", err)
	}

	if err := SavePassword("vault-a", "pw-a"); err != nil {
		t.Fatalf("SavePassword failed: %v", err)
	}
	got, err := GetPassword("vault-a")
	if err != nil || got != "pw-a" {
		t.Fatalf("GetPassword: got %q err=%v", got, err)
	}

	// Vaults do not see each other's rows
	if err := SavePassword("vault-b", "pw-b"); err != nil {
		t.Fatalf("SavePassword failed: %v", err)
	}
	got, err = GetPassword("vault-a")
	if err != nil || got != "pw-a" {
		t.Fatalf("Second vault must not clobber the first: got %q err=%v", got, err)
	}

	if err := DeletePassword("vault-a"); err != nil {
		t.Fatalf("DeletePassword failed: %v", err)
	}
	if HasPassword("vault-a") {
		t.Error("Password should be gone after delete")
	}
	if !HasPassword("vault-b") {
		t.Error("Deleting one vault's row must not touch another's")
	}

	// Deleting a row that was never stored is fine
	if err := DeletePassword("vault-a"); err != nil {
		t.Errorf("Double delete should be a no-op, got %v", err)
	}
}
