package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	SaltSize     = 16 // Salt size in bytes
	KeySize      = 32 // AES-256 key size
	NonceSize    = 12 // GCM nonce size
	TagSize      = 16 // GCM authentication tag size
	VerifierSize = 32 // Master key verifier size
)

// Cost floors. Deriving with anything below these is refused.
const (
	MinTime      = 1
	MinMemoryKiB = 8 * 1024
	MinThreads   = 1
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrKDFParams         = errors.New("kdf parameters out of bounds")
)

// Params holds versioned argon2id cost parameters. The version is persisted
// alongside the salt so vaults created with older costs keep deriving the
// same key until they are migrated.
type Params struct {
	Version   int    `json:"version" cbor:"1,keyasint"`
	Time      uint32 `json:"time" cbor:"2,keyasint"`
	MemoryKiB uint32 `json:"memoryKiB" cbor:"3,keyasint"`
	Threads   uint8  `json:"threads" cbor:"4,keyasint"`
}

// DefaultParams returns the current recommended cost parameters.
func DefaultParams() Params {
	return Params{
		Version:   1,
		Time:      3,
		MemoryKiB: 64 * 1024,
		Threads:   4,
	}
}

// Validate checks the parameters against the safety floors.
func (p Params) Validate() error {
	if p.Time < MinTime {
		return fmt.Errorf("%w: time cost %d below minimum %d", ErrKDFParams, p.Time, MinTime)
	}
	if p.MemoryKiB < MinMemoryKiB {
		return fmt.Errorf("%w: memory %d KiB below minimum %d", ErrKDFParams, p.MemoryKiB, MinMemoryKiB)
	}
	if p.Threads < MinThreads {
		return fmt.Errorf("%w: threads %d below minimum %d", ErrKDFParams, p.Threads, MinThreads)
	}
	return nil
}

// GenerateSalt creates a new random KDF salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a symmetric key from a master password with argon2id.
// Deterministic: identical password, salt and params always yield the same key.
func DeriveKey(password, salt []byte, p Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, KeySize), nil
}

// MakeVerifier derives a password-check value from the master key. It goes
// through an HKDF expansion so the stored verifier cannot double as the
// encryption key.
func MakeVerifier(key []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, key, nil, []byte("passlock/verifier/v1"))
	verifier := make([]byte, VerifierSize)
	if _, err := io.ReadFull(r, verifier); err != nil {
		return nil, fmt.Errorf("failed to derive verifier: %w", err)
	}
	return verifier, nil
}

// VerifyKey checks a derived key against a stored verifier in constant time.
func VerifyKey(key, verifier []byte) bool {
	derived, err := MakeVerifier(key)
	if err != nil {
		return false
	}
	defer ClearBytes(derived)
	return ConstantTimeCompare(derived, verifier)
}

// Seal encrypts plaintext with AES-256-GCM under a fresh random nonce.
// The associated data is authenticated but not encrypted; callers bind a
// payload to its record by passing the record ID here.
func Seal(plaintext, key, aad []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// Open verifies and decrypts a sealed payload. The tag is checked before any
// plaintext is returned; a wrong key, wrong associated data or any flipped
// bit yields ErrAuthFailed.
func Open(nonce, ciphertext, key, aad []byte) ([]byte, error) {
	if len(nonce) != NonceSize || len(ciphertext) < TagSize {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Fingerprint returns the hex SHA-256 of data, for change detection where the
// data itself must not be shown.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

const (
	passwordLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	passwordSymbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// GeneratePassword produces a random password from a letter/digit charset,
// optionally extended with symbols.
func GeneratePassword(length int, symbols bool) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid password length %d", length)
	}
	chars := passwordLetters
	if symbols {
		chars += passwordSymbols
	}
	limit := big.NewInt(int64(len(chars)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = chars[n.Int64()]
	}
	return string(out), nil
}
