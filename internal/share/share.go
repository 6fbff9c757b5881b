// Package share produces time-boxed, independently encrypted exports of a
// single entry for a named recipient. Each share uses a fresh ephemeral
// secret unrelated to the vault master key: redeeming a share never requires
// (or reveals) anything about the vault, and revoking one touches nothing but
// a logical flag. Revocation cannot claw back plaintext a recipient already
// redeemed.
package share

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"

	"github.com/live-labs/passlock/internal/crypto"
	"github.com/live-labs/passlock/internal/storage"
)

var (
	ErrExpiredToken   = errors.New("share token expired or revoked")
	ErrAuthentication = errors.New("share token or payload failed verification")
)

// Secret holds the fields of one entry that travel inside a share bundle.
type Secret struct {
	Title    string `cbor:"1,keyasint"`
	Username string `cbor:"2,keyasint"`
	Password string `cbor:"3,keyasint"`
	URL      string `cbor:"4,keyasint,omitempty"`
	Notes    string `cbor:"5,keyasint,omitempty"`
}

// Bundle is the sealed share as it travels out of band: a signed token
// carrying the share metadata plus the encrypted secret.
type Bundle struct {
	Token   string `cbor:"1,keyasint"`
	Nonce   []byte `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint"`
}

// Encode serializes a bundle for transport.
func (b *Bundle) Encode() ([]byte, error) {
	return cbor.Marshal(b)
}

// DecodeBundle parses a transported bundle.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: malformed bundle", ErrAuthentication)
	}
	return &b, nil
}

// Service creates, redeems and revokes shares. The store is optional on the
// redeeming side; without it only the token's own expiry is enforced.
type Service struct {
	store *storage.Storage
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store *storage.Storage, log zerolog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// The ephemeral secret is split into two keys so the HMAC signing key never
// doubles as the encryption key.
func splitKeys(ephemeral []byte) (encKey, sigKey []byte, err error) {
	encKey = make([]byte, crypto.KeySize)
	sigKey = make([]byte, crypto.KeySize)
	r := hkdf.New(sha256.New, ephemeral, nil, []byte("passlock/share/enc/v1"))
	if _, err := io.ReadFull(r, encKey); err != nil {
		return nil, nil, err
	}
	r = hkdf.New(sha256.New, ephemeral, nil, []byte("passlock/share/sig/v1"))
	if _, err := io.ReadFull(r, sigKey); err != nil {
		return nil, nil, err
	}
	return encKey, sigKey, nil
}

// Share seals the secret for a recipient. Returns the ephemeral key for
// out-of-band delivery alongside the bundle; the two must travel separately.
func (s *Service) Share(entryID string, secret Secret, recipient string, ttl time.Duration) (ephemeralKey []byte, bundle *Bundle, err error) {
	if ttl <= 0 {
		return nil, nil, fmt.Errorf("share ttl must be positive")
	}

	ephemeralKey, err = crypto.GenerateRandom(crypto.KeySize)
	if err != nil {
		return nil, nil, err
	}
	encKey, sigKey, err := splitKeys(ephemeralKey)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.ClearBytes(encKey)
	defer crypto.ClearBytes(sigKey)

	shareID := uuid.NewString()
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		ID:        shareID,
		Subject:   entryID,
		Audience:  jwt.ClaimStrings{recipient},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sigKey)
	if err != nil {
		return nil, nil, err
	}

	plain, err := cbor.Marshal(secret)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.ClearBytes(plain)

	// AAD binds the payload to this specific share.
	nonce, ciphertext, err := crypto.Seal(plain, encKey, []byte(shareID))
	if err != nil {
		return nil, nil, err
	}

	if s.store != nil {
		rec := storage.ShareRecord{
			ID:        shareID,
			EntryID:   entryID,
			Recipient: recipient,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}
		if err := s.store.PutShare(rec); err != nil {
			return nil, nil, fmt.Errorf("failed to record share: %w", err)
		}
	}

	s.log.Info().
		Str("share", shareID).
		Str("entry", entryID).
		Str("recipient", recipient).
		Time("expires", expiresAt).
		Msg("entry shared")
	return ephemeralKey, &Bundle{Token: token, Nonce: nonce, Payload: ciphertext}, nil
}

// Redeem verifies the token with the ephemeral key and decrypts the secret.
// Fails with ErrExpiredToken past expiry or after revocation, and with
// ErrAuthentication on a forged or tampered bundle.
func (s *Service) Redeem(bundle *Bundle, ephemeralKey []byte) (*Secret, error) {
	encKey, sigKey, err := splitKeys(ephemeralKey)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(encKey)
	defer crypto.ClearBytes(sigKey)

	parsed, err := jwt.ParseWithClaims(bundle.Token, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) { return sigKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" {
		return nil, ErrAuthentication
	}

	if s.store != nil {
		rec, err := s.store.GetShare(claims.ID)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Revoked {
			return nil, ErrExpiredToken
		}
	}

	plain, err := crypto.Open(bundle.Nonce, bundle.Payload, encKey, []byte(claims.ID))
	if err != nil {
		return nil, ErrAuthentication
	}
	defer crypto.ClearBytes(plain)

	var secret Secret
	if err := cbor.Unmarshal(plain, &secret); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", ErrAuthentication)
	}
	return &secret, nil
}

// Revoke flips the logical revocation flag. Idempotent; unknown IDs are an
// error so typos do not silently succeed.
func (s *Service) Revoke(shareID string) error {
	rec, err := s.store.GetShare(shareID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("share %s not found", shareID)
	}
	if rec.Revoked {
		return nil
	}
	rec.Revoked = true
	if err := s.store.PutShare(*rec); err != nil {
		return err
	}
	s.log.Info().Str("share", shareID).Msg("share revoked")
	return nil
}

// List returns all recorded shares, newest first.
func (s *Service) List() ([]storage.ShareRecord, error) {
	recs, err := s.store.ListShares()
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	return recs, nil
}
