package vault

import (
	"errors"
	"testing"
	"time"
)

func emergencyContact(t *testing.T, v *Vault, wait time.Duration) (string, []byte) {
	t.Helper()
	key, contact, err := v.AddEmergencyContact("Alice", wait)
	if err != nil {
		t.Fatalf("AddEmergencyContact failed: %v", err)
	}
	return contact.ID, key
}

func TestEmergencyAccessWaitingPeriod(t *testing.T) {
	v, clock := unlockedVault(t, "master-pw")

	id, err := v.Create(draft("Mail", "a@b.com", "pw"))
	if err != nil {
		t.Fatal(err)
	}
	contactID, key := emergencyContact(t, v, 7*24*time.Hour)
	v.Lock()

	// No request filed yet
	if err := v.EmergencyUnlock(contactID, key); !errors.Is(err, ErrNoEmergencyGrant) {
		t.Fatalf("Expected ErrNoEmergencyGrant, got %v", err)
	}

	req, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		t.Fatalf("RequestEmergencyAccess failed: %v", err)
	}
	if req.Status != EmergencyPending {
		t.Fatalf("Fresh request should be pending, got %s", req.Status)
	}

	// Filing again returns the same pending request
	again, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		t.Fatalf("RequestEmergencyAccess failed: %v", err)
	}
	if again.ID != req.ID {
		t.Error("A pending request should be reused, not duplicated")
	}

	// Inside the waiting period access stays closed
	clock.Advance(3 * 24 * time.Hour)
	if err := v.EmergencyUnlock(contactID, key); !errors.Is(err, ErrEmergencyWaiting) {
		t.Fatalf("Expected ErrEmergencyWaiting, got %v", err)
	}
	if v.State() != Locked {
		t.Fatal("Vault must stay locked during the waiting period")
	}

	// The request matures once the wait has elapsed
	clock.Advance(4 * 24 * time.Hour)
	if err := v.EmergencyUnlock(contactID, key); err != nil {
		t.Fatalf("EmergencyUnlock failed: %v", err)
	}
	if v.State() != Unlocked {
		t.Fatal("Vault should be unlocked after emergency access")
	}
	e, err := v.Read(id)
	if err != nil || e.Password != "pw" {
		t.Fatalf("Entries should decrypt after emergency unlock: %+v err=%v", e, err)
	}
}

func TestEmergencyApproveSkipsWait(t *testing.T) {
	v, _ := unlockedVault(t, "master-pw")

	contactID, key := emergencyContact(t, v, 7*24*time.Hour)

	req, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		t.Fatalf("RequestEmergencyAccess failed: %v", err)
	}
	if err := v.ApproveEmergencyRequest(req.ID); err != nil {
		t.Fatalf("ApproveEmergencyRequest failed: %v", err)
	}

	v.Lock()
	if err := v.EmergencyUnlock(contactID, key); err != nil {
		t.Fatalf("Approved request should open immediately: %v", err)
	}
}

func TestEmergencyDenyBlocks(t *testing.T) {
	v, clock := unlockedVault(t, "master-pw")

	contactID, key := emergencyContact(t, v, time.Hour)

	req, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		t.Fatalf("RequestEmergencyAccess failed: %v", err)
	}
	if err := v.DenyEmergencyRequest(req.ID); err != nil {
		t.Fatalf("DenyEmergencyRequest failed: %v", err)
	}

	// A denied request never matures, no matter how long passes
	clock.Advance(48 * time.Hour)
	v.Tick(clock.Now())
	if err := v.EmergencyUnlock(contactID, key); !errors.Is(err, ErrNoEmergencyGrant) {
		t.Fatalf("Expected ErrNoEmergencyGrant after denial, got %v", err)
	}

	// Deciding twice fails
	if err := v.Unlock([]byte("master-pw")); err != nil {
		t.Fatal(err)
	}
	if err := v.ApproveEmergencyRequest(req.ID); !errors.Is(err, ErrValidation) {
		t.Errorf("Re-deciding a denied request should fail, got %v", err)
	}
}

func TestEmergencyWrongRecoveryKey(t *testing.T) {
	v, _ := unlockedVault(t, "master-pw")

	contactID, _ := emergencyContact(t, v, time.Hour)
	req, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.ApproveEmergencyRequest(req.ID); err != nil {
		t.Fatal(err)
	}

	v.Lock()
	wrong := make([]byte, 32)
	if err := v.EmergencyUnlock(contactID, wrong); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Expected ErrWrongPassword with a wrong recovery key, got %v", err)
	}
	if v.State() != Locked {
		t.Error("Vault must stay locked after a failed emergency unlock")
	}
}

func TestEmergencyEscrowStaleAfterPasswordChange(t *testing.T) {
	v, _ := unlockedVault(t, "old-pw")

	contactID, key := emergencyContact(t, v, time.Hour)

	if err := v.ChangeMasterPassword([]byte("old-pw"), []byte("new-pw")); err != nil {
		t.Fatalf("ChangeMasterPassword failed: %v", err)
	}

	req, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.ApproveEmergencyRequest(req.ID); err != nil {
		t.Fatal(err)
	}

	// The escrow still seals the old key; it must not open the vault now.
	v.Lock()
	if err := v.EmergencyUnlock(contactID, key); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Stale escrow should be rejected, got %v", err)
	}
}

func TestEmergencyOwnerOperationsNeedSession(t *testing.T) {
	v, _ := unlockedVault(t, "master-pw")

	contactID, _ := emergencyContact(t, v, time.Hour)
	req, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		t.Fatal(err)
	}

	v.Lock()
	if _, _, err := v.AddEmergencyContact("Bob", time.Hour); !errors.Is(err, ErrLocked) {
		t.Errorf("AddEmergencyContact while locked: expected ErrLocked, got %v", err)
	}
	if err := v.ApproveEmergencyRequest(req.ID); !errors.Is(err, ErrLocked) {
		t.Errorf("Approve while locked: expected ErrLocked, got %v", err)
	}
	if err := v.RemoveEmergencyContact(contactID); !errors.Is(err, ErrLocked) {
		t.Errorf("Remove while locked: expected ErrLocked, got %v", err)
	}

	// Requesting and listing work without a session
	if _, err := v.RequestEmergencyAccess(contactID); err != nil {
		t.Errorf("RequestEmergencyAccess while locked should work, got %v", err)
	}
	if _, err := v.ListEmergencyContacts(); err != nil {
		t.Errorf("ListEmergencyContacts while locked should work, got %v", err)
	}
}

func TestEmergencyRemoveContactCutsAccess(t *testing.T) {
	v, _ := unlockedVault(t, "master-pw")

	contactID, key := emergencyContact(t, v, time.Hour)
	req, err := v.RequestEmergencyAccess(contactID)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.ApproveEmergencyRequest(req.ID); err != nil {
		t.Fatal(err)
	}
	if err := v.RemoveEmergencyContact(contactID); err != nil {
		t.Fatalf("RemoveEmergencyContact failed: %v", err)
	}

	v.Lock()
	if err := v.EmergencyUnlock(contactID, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Removed contact should not unlock, got %v", err)
	}
}
