package vault

import (
	"sync/atomic"
	"time"

	"github.com/live-labs/passlock/internal/crypto"
)

// State is the lock state of a vault.
type State int

const (
	Uninitialized State = iota // no master credential stored yet
	Locked
	Unlocked
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// session holds the live master key. It exists only while the vault is
// unlocked and is scrubbed on lock.
type session struct {
	key        []byte
	unlockedAt time.Time
	expiresAt  time.Time

	// UnixNano of the most recent use. Read paths touch it while holding
	// only the vault's read lock, so it must be atomic.
	lastActivity atomic.Int64
}

func newSession(key []byte, now time.Time, maxAge time.Duration) *session {
	s := &session{
		key:        key,
		unlockedAt: now,
		expiresAt:  now.Add(maxAge),
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

func (s *session) touch(now time.Time) {
	s.lastActivity.Store(now.UnixNano())
}

func (s *session) lastActivityAt() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// expired reports whether the session hit its idle timeout or hard cap.
func (s *session) expired(now time.Time, idleTimeout time.Duration) bool {
	if idleTimeout > 0 && now.Sub(s.lastActivityAt()) > idleTimeout {
		return true
	}
	return now.After(s.expiresAt)
}

func (s *session) destroy() {
	crypto.ClearBytes(s.key)
	s.key = nil
}

// SessionInfo is a read-only snapshot of the live session for status output.
type SessionInfo struct {
	UnlockedAt     time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
}
