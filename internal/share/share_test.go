package share

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/storage"
)

func testService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.passlock"))
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return NewService(store, zerolog.Nop())
}

var testSecret = Secret{
	Title:    "Mail",
	Username: "a@b.com",
	Password: "Sup3r$ecret!",
	URL:      "https://mail.example.com",
	Notes:    "shared for on-call",
}

func TestShareRedeemRoundtrip(t *testing.T) {
	s := testService(t)

	key, bundle, err := s.Share("entry-1", testSecret, "bob", time.Hour)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	if len(key) != crypto.KeySize {
		t.Fatalf("Expected a %d-byte ephemeral key, got %d", crypto.KeySize, len(key))
	}

	// Survives transport encoding
	wire, err := bundle.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodeBundle(wire)
	if err != nil {
		t.Fatalf("DecodeBundle failed: %v", err)
	}

	got, err := s.Redeem(decoded, key)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if *got != testSecret {
		t.Errorf("Redeemed secret differs: %+v", got)
	}
}

func TestRedeemExpired(t *testing.T) {
	s := testService(t)

	key, bundle, err := s.Share("entry-1", testSecret, "bob", time.Hour)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Redeem(bundle, key); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestRedeemRevoked(t *testing.T) {
	s := testService(t)

	key, bundle, err := s.Share("entry-1", testSecret, "bob", time.Hour)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	shares, err := s.List()
	if err != nil || len(shares) != 1 {
		t.Fatalf("Expected 1 recorded share, got %d (err=%v)", len(shares), err)
	}

	if err := s.Revoke(shares[0].ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	// Idempotent
	if err := s.Revoke(shares[0].ID); err != nil {
		t.Fatalf("Second revoke failed: %v", err)
	}
	if err := s.Revoke("no-such-share"); err == nil {
		t.Error("Revoking an unknown share should fail")
	}

	if _, err := s.Redeem(bundle, key); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("Expected ErrExpiredToken after revocation, got %v", err)
	}
}

func TestRedeemWrongKey(t *testing.T) {
	s := testService(t)

	_, bundle, err := s.Share("entry-1", testSecret, "bob", time.Hour)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	wrong, err := crypto.GenerateRandom(crypto.KeySize)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Redeem(bundle, wrong); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Expected ErrAuthentication, got %v", err)
	}
}

func TestRedeemTamperedPayload(t *testing.T) {
	s := testService(t)

	key, bundle, err := s.Share("entry-1", testSecret, "bob", time.Hour)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	bundle.Payload[0] ^= 0xff
	if _, err := s.Redeem(bundle, key); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Expected ErrAuthentication on tampered payload, got %v", err)
	}
}

func TestRedeemTamperedToken(t *testing.T) {
	s := testService(t)

	key1, bundle1, err := s.Share("entry-1", testSecret, "bob", time.Hour)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	_, bundle2, err := s.Share("entry-2", Secret{Title: "Other", Username: "x", Password: "y"}, "eve", time.Hour)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	// Splicing another share's token onto this payload must not work: the
	// token signature uses a different key, and the payload AAD pins the
	// share ID.
	bundle1.Token = bundle2.Token
	if _, err := s.Redeem(bundle1, key1); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Expected ErrAuthentication on spliced token, got %v", err)
	}
}

func TestEphemeralKeysAreUnique(t *testing.T) {
	s := testService(t)

	key1, _, err := s.Share("entry-1", testSecret, "bob", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	key2, _, err := s.Share("entry-1", testSecret, "bob", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if string(key1) == string(key2) {
		t.Fatal("Every share must use a fresh ephemeral key")
	}
}
