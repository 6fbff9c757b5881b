package vault

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/storage"
)

const (
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultMaxSessionAge = 8 * time.Hour
)

// Options tunes a vault's session policy.
type Options struct {
	IdleTimeout   time.Duration // auto-lock after this much inactivity; 0 disables
	MaxSessionAge time.Duration // hard cap on session lifetime
	Now           func() time.Time
}

// Vault owns the persisted store and the (at most one) live session. All
// public operations go through its mutex: structural writes are exclusive,
// reads run concurrently with other reads.
type Vault struct {
	mu    sync.RWMutex
	store *storage.Storage
	log   zerolog.Logger

	state    State
	session  *session
	attempts int

	idleTimeout   time.Duration
	maxSessionAge time.Duration
	now           func() time.Time
}

// Open opens or creates the vault database at path. The resulting state is
// Uninitialized until Setup has stored a master credential, Locked otherwise.
func Open(path string, log zerolog.Logger, opts Options) (*Vault, error) {
	store, err := storage.Open(path)
	if err != nil {
		return nil, err
	}

	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.MaxSessionAge == 0 {
		opts.MaxSessionAge = DefaultMaxSessionAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	v := &Vault{
		store:         store,
		log:           log,
		state:         Uninitialized,
		idleTimeout:   opts.IdleTimeout,
		maxSessionAge: opts.MaxSessionAge,
		now:           opts.Now,
	}

	has, err := store.HasCredential()
	if err != nil {
		store.Close()
		return nil, err
	}
	if has {
		v.state = Locked
	}
	return v, nil
}

// Close locks the vault and releases the store.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked("close")
	return v.store.Close()
}

// State returns the current lock state.
func (v *Vault) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Attempts returns the number of consecutive failed unlock attempts. Backoff
// policy belongs to the caller; the state machine only counts.
func (v *Vault) Attempts() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.attempts
}

// Session returns a snapshot of the live session, or nil when locked.
func (v *Vault) Session() *SessionInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.session == nil {
		return nil
	}
	return &SessionInfo{
		UnlockedAt:     v.session.unlockedAt,
		ExpiresAt:      v.session.expiresAt,
		LastActivityAt: v.session.lastActivityAt(),
	}
}

// Setup stores the master credential for a fresh vault and moves it to
// Locked. Fails on a vault that already has one.
func (v *Vault) Setup(password []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Uninitialized {
		return ErrAlreadyInitialized
	}
	if len(password) == 0 {
		return fmt.Errorf("%w: empty master password", ErrValidation)
	}

	if err := v.store.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}
	params := crypto.DefaultParams()

	key, err := crypto.DeriveKey(password, salt, params)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(key)

	verifier, err := crypto.MakeVerifier(key)
	if err != nil {
		return err
	}

	if err := v.store.SetMasterCredential(salt, params, verifier); err != nil {
		return fmt.Errorf("failed to store master credential: %w", err)
	}

	v.state = Locked
	v.log.Info().Msg("vault initialized")
	return nil
}

// Unlock derives a key from the master password, verifies it against the
// stored verifier and creates the session. On mismatch the state stays
// Locked and the attempt counter grows.
func (v *Vault) Unlock(password []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case Uninitialized:
		return ErrNotInitialized
	case Unlocked:
		return nil
	}

	key, err := v.deriveAndVerify(password)
	if err != nil {
		v.attempts++
		v.log.Warn().Int("attempts", v.attempts).Msg("unlock failed")
		return err
	}

	v.session = newSession(key, v.now(), v.maxSessionAge)
	v.state = Unlocked
	v.attempts = 0
	v.log.Info().Msg("vault unlocked")
	return nil
}

// deriveAndVerify returns the derived key on success. Callers own the key.
func (v *Vault) deriveAndVerify(password []byte) ([]byte, error) {
	salt, err := v.store.GetSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}
	params, err := v.store.GetKDFParams()
	if err != nil {
		return nil, fmt.Errorf("failed to read kdf params: %w", err)
	}
	verifier, err := v.store.GetVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to read verifier: %w", err)
	}

	key, err := crypto.DeriveKey(password, salt, params)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyKey(key, verifier) {
		crypto.ClearBytes(key)
		return nil, ErrWrongPassword
	}
	return key, nil
}

// Lock destroys the session key and returns to Locked.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked("explicit")
}

// lockLocked must be called with the write lock held.
func (v *Vault) lockLocked(reason string) {
	if v.state != Unlocked {
		return
	}
	v.session.destroy()
	v.session = nil
	v.state = Locked
	v.log.Info().Str("reason", reason).Msg("vault locked")
}

// Touch resets the inactivity clock. Every vault operation calls it via
// sessionKey; hosts may call it directly around UI activity.
func (v *Vault) Touch() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session != nil {
		v.session.touch(v.now())
	}
}

// Tick enforces the auto-lock timeout. The host is expected to call it
// periodically; it is also invoked before every keyed operation so an
// expired session can never be used.
func (v *Vault) Tick(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tickLocked(now)
}

func (v *Vault) tickLocked(now time.Time) {
	if v.state == Unlocked && v.session.expired(now, v.idleTimeout) {
		v.lockLocked("timeout")
	}
}

// sessionKey returns the live key. Must be called with at least a read lock
// held; the caller must not retain the slice past the lock.
func (v *Vault) sessionKey() ([]byte, error) {
	if v.state != Unlocked || v.session == nil {
		return nil, ErrLocked
	}
	if v.session.expired(v.now(), v.idleTimeout) {
		return nil, ErrLocked
	}
	v.session.touch(v.now())
	return v.session.key, nil
}

// checkSession is the pre-flight for keyed operations done under the write
// lock: expires the session if stale, then hands out the key.
func (v *Vault) checkSessionLocked() ([]byte, error) {
	v.tickLocked(v.now())
	return v.sessionKey()
}

// Store exposes the underlying storage handle for collaborators that persist
// their own records alongside the entries, such as the sharing service. It
// grants no access to any key material.
func (v *Vault) Store() *storage.Storage {
	return v.store
}

// VaultID returns the stable random identifier of this vault, creating it on
// first use. Used as the keyring account name.
func (v *Vault) VaultID() (string, error) {
	return v.store.GetOrCreateVaultID()
}

// LastModified returns the store's last modification time.
func (v *Vault) LastModified() (time.Time, error) {
	return v.store.GetModified()
}

// KDFParams returns the persisted cost parameters.
func (v *Vault) KDFParams() (crypto.Params, error) {
	return v.store.GetKDFParams()
}

// Compact reclaims unused space in the store.
func (v *Vault) Compact() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store.Compact()
}
