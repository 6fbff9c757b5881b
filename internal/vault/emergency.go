package vault

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/storage"
)

// Emergency access lets a trusted contact open the vault without the master
// password. Adding a contact escrows the current master key sealed under a
// random recovery key that is handed to the contact once and never stored.
// A contact must then file a request; the owner can approve it (access opens
// immediately) or deny it, and a pending request matures on its own once the
// contact's waiting period has elapsed.

const (
	DefaultEmergencyWait = 7 * 24 * time.Hour
	emergencyRequestTTL  = 30 * 24 * time.Hour
)

// Emergency request statuses.
const (
	EmergencyPending  = "pending"
	EmergencyApproved = "approved"
	EmergencyDenied   = "denied"
)

// AddEmergencyContact escrows the session's master key for a new contact and
// returns the contact's recovery key. The key is shown once; losing it means
// re-adding the contact.
func (v *Vault) AddEmergencyContact(name string, wait time.Duration) ([]byte, *storage.EmergencyContact, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	masterKey, err := v.checkSessionLocked()
	if err != nil {
		return nil, nil, err
	}
	if name == "" {
		return nil, nil, fmt.Errorf("%w: contact name is required", ErrValidation)
	}
	if wait <= 0 {
		wait = DefaultEmergencyWait
	}

	recoveryKey, err := crypto.GenerateRandom(crypto.KeySize)
	if err != nil {
		return nil, nil, err
	}

	id := uuid.NewString()
	nonce, ciphertext, err := crypto.Seal(masterKey, recoveryKey, []byte(id))
	if err != nil {
		return nil, nil, err
	}

	contact := &storage.EmergencyContact{
		ID:               id,
		Name:             name,
		WaitingPeriod:    wait,
		CreatedAt:        v.now(),
		EscrowNonce:      nonce,
		EscrowCiphertext: ciphertext,
	}
	if err := v.store.PutEmergencyContact(*contact); err != nil {
		return nil, nil, fmt.Errorf("failed to store emergency contact: %w", err)
	}
	v.log.Info().Str("contact", id).Dur("wait", wait).Msg("emergency contact added")
	return recoveryKey, contact, nil
}

// RemoveEmergencyContact deletes a contact and its escrowed key. Removal is
// an owner decision, so it needs an unlocked vault.
func (v *Vault) RemoveEmergencyContact(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.checkSessionLocked(); err != nil {
		return err
	}
	contact, err := v.store.GetEmergencyContact(id)
	if err != nil {
		return err
	}
	if contact == nil {
		return ErrNotFound
	}
	if err := v.store.DeleteEmergencyContact(id); err != nil {
		return err
	}
	v.log.Info().Str("contact", id).Msg("emergency contact removed")
	return nil
}

// RequestEmergencyAccess files an access request for a contact, or returns
// the contact's existing pending request. Requires no session: the requester
// by definition cannot unlock the vault.
func (v *Vault) RequestEmergencyAccess(contactID string) (*storage.EmergencyRequest, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == Uninitialized {
		return nil, ErrNotInitialized
	}
	contact, err := v.store.GetEmergencyContact(contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrNotFound
	}

	now := v.now()
	existing, err := v.store.ListEmergencyRequests()
	if err != nil {
		return nil, err
	}
	for i := range existing {
		r := existing[i]
		if r.ContactID == contactID && r.Status == EmergencyPending && now.Before(r.ExpiresAt) {
			return &r, nil
		}
	}

	req := &storage.EmergencyRequest{
		ID:          uuid.NewString(),
		ContactID:   contactID,
		Status:      EmergencyPending,
		RequestedAt: now,
		ExpiresAt:   now.Add(emergencyRequestTTL),
	}
	if err := v.store.PutEmergencyRequest(*req); err != nil {
		return nil, fmt.Errorf("failed to store emergency request: %w", err)
	}
	v.log.Warn().Str("contact", contactID).Str("request", req.ID).Msg("emergency access requested")
	return req, nil
}

// ApproveEmergencyRequest grants access immediately, skipping the wait.
func (v *Vault) ApproveEmergencyRequest(requestID string) error {
	return v.decideEmergencyRequest(requestID, EmergencyApproved)
}

// DenyEmergencyRequest cancels a pending request. The contact may file a new
// one; remove the contact to cut access off for good.
func (v *Vault) DenyEmergencyRequest(requestID string) error {
	return v.decideEmergencyRequest(requestID, EmergencyDenied)
}

func (v *Vault) decideEmergencyRequest(requestID, status string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.checkSessionLocked(); err != nil {
		return err
	}
	req, err := v.store.GetEmergencyRequest(requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrNotFound
	}
	if req.Status != EmergencyPending {
		return fmt.Errorf("%w: request already %s", ErrValidation, req.Status)
	}

	now := v.now()
	req.Status = status
	req.DecidedAt = &now
	if err := v.store.PutEmergencyRequest(*req); err != nil {
		return err
	}
	v.log.Info().Str("request", requestID).Str("status", status).Msg("emergency request decided")
	return nil
}

// EmergencyUnlock opens the vault with a contact's recovery key. It succeeds
// when the owner approved a request, or when a pending request's waiting
// period elapsed without a denial. The escrowed key is checked against the
// live verifier, so an escrow made before a master password change is
// rejected rather than yielding a key that decrypts nothing.
func (v *Vault) EmergencyUnlock(contactID string, recoveryKey []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == Uninitialized {
		return ErrNotInitialized
	}
	contact, err := v.store.GetEmergencyContact(contactID)
	if err != nil {
		return err
	}
	if contact == nil {
		return ErrNotFound
	}

	req, err := v.matureRequestLocked(contact)
	if err != nil {
		return err
	}

	masterKey, err := crypto.Open(contact.EscrowNonce, contact.EscrowCiphertext, recoveryKey, []byte(contact.ID))
	if err != nil {
		return ErrWrongPassword
	}

	verifier, err := v.store.GetVerifier()
	if err != nil {
		crypto.ClearBytes(masterKey)
		return err
	}
	if !crypto.VerifyKey(masterKey, verifier) {
		crypto.ClearBytes(masterKey)
		return fmt.Errorf("%w: escrowed key predates a master password change, re-add the contact", ErrWrongPassword)
	}

	v.lockLocked("emergency")
	v.session = newSession(masterKey, v.now(), v.maxSessionAge)
	v.state = Unlocked
	v.attempts = 0
	v.log.Warn().Str("contact", contactID).Str("request", req.ID).Msg("vault opened via emergency access")
	return nil
}

// matureRequestLocked finds the request authorizing access for a contact.
func (v *Vault) matureRequestLocked(contact *storage.EmergencyContact) (*storage.EmergencyRequest, error) {
	reqs, err := v.store.ListEmergencyRequests()
	if err != nil {
		return nil, err
	}
	now := v.now()
	for i := range reqs {
		r := &reqs[i]
		if r.ContactID != contact.ID {
			continue
		}
		switch r.Status {
		case EmergencyApproved:
			return r, nil
		case EmergencyPending:
			if now.After(r.ExpiresAt) {
				continue
			}
			waited := now.Sub(r.RequestedAt)
			if waited >= contact.WaitingPeriod {
				return r, nil
			}
			return nil, fmt.Errorf("%w: %s remaining", ErrEmergencyWaiting,
				(contact.WaitingPeriod - waited).Round(time.Second))
		}
	}
	return nil, ErrNoEmergencyGrant
}

// ListEmergencyContacts returns the configured contacts. Escrow material is
// included but useless without the matching recovery key.
func (v *Vault) ListEmergencyContacts() ([]storage.EmergencyContact, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	contacts, err := v.store.ListEmergencyContacts()
	if err != nil {
		return nil, err
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})
	return contacts, nil
}

// ListEmergencyRequests returns all access requests, newest first.
func (v *Vault) ListEmergencyRequests() ([]storage.EmergencyRequest, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	reqs, err := v.store.ListEmergencyRequests()
	if err != nil {
		return nil, err
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].RequestedAt.After(reqs[j].RequestedAt)
	})
	return reqs, nil
}
