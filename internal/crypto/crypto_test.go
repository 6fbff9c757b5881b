package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	// Smallest allowed cost, keeps the suite fast.
	return Params{Version: 1, Time: 1, MemoryKiB: MinMemoryKiB, Threads: 1}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	k1, err := DeriveKey([]byte("correct horse"), salt, testParams())
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("correct horse"), salt, testParams())
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeySize)
}

func TestDeriveKeyDiffersBySaltAndPassword(t *testing.T) {
	salt1, err := GenerateSalt()
	require.NoError(t, err)
	salt2, err := GenerateSalt()
	require.NoError(t, err)

	k1, err := DeriveKey([]byte("password"), salt1, testParams())
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("password"), salt2, testParams())
	require.NoError(t, err)
	k3, err := DeriveKey([]byte("other"), salt1, testParams())
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestDeriveKeyRejectsWeakParams(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	_, err = DeriveKey([]byte("pw"), salt, Params{Version: 1, Time: 0, MemoryKiB: MinMemoryKiB, Threads: 1})
	assert.ErrorIs(t, err, ErrKDFParams)

	_, err = DeriveKey([]byte("pw"), salt, Params{Version: 1, Time: 1, MemoryKiB: 1024, Threads: 1})
	assert.ErrorIs(t, err, ErrKDFParams)

	_, err = DeriveKey([]byte("pw"), salt, Params{Version: 1, Time: 1, MemoryKiB: MinMemoryKiB, Threads: 0})
	assert.ErrorIs(t, err, ErrKDFParams)
}

func TestVerifier(t *testing.T) {
	key, err := GenerateRandom(KeySize)
	require.NoError(t, err)

	verifier, err := MakeVerifier(key)
	require.NoError(t, err)

	// The verifier must not leak the key itself.
	assert.NotEqual(t, key, verifier)
	assert.True(t, VerifyKey(key, verifier))

	other, err := GenerateRandom(KeySize)
	require.NoError(t, err)
	assert.False(t, VerifyKey(other, verifier))
}

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateRandom(KeySize)
	require.NoError(t, err)

	plaintext := []byte(`{"username":"a@b.com","password":"Sup3r$ecret!"}`)
	aad := []byte("entry-id-1")

	nonce, ciphertext, err := Seal(plaintext, key, aad)
	require.NoError(t, err)
	require.Len(t, nonce, NonceSize)

	got, err := Open(nonce, ciphertext, key, aad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSealUsesFreshNonce(t *testing.T) {
	key, err := GenerateRandom(KeySize)
	require.NoError(t, err)

	n1, c1, err := Seal([]byte("same"), key, nil)
	require.NoError(t, err)
	n2, c2, err := Seal([]byte("same"), key, nil)
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, c1, c2)
}

func TestOpenDetectsTampering(t *testing.T) {
	key, err := GenerateRandom(KeySize)
	require.NoError(t, err)

	nonce, ciphertext, err := Seal([]byte("secret payload"), key, []byte("id"))
	require.NoError(t, err)

	// Flip one bit in every position of ciphertext and nonce; all must fail.
	for i := range ciphertext {
		mutated := bytes.Clone(ciphertext)
		mutated[i] ^= 0x01
		_, err := Open(nonce, mutated, key, []byte("id"))
		if !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("ciphertext bit flip at %d not detected: %v", i, err)
		}
	}
	for i := range nonce {
		mutated := bytes.Clone(nonce)
		mutated[i] ^= 0x01
		_, err := Open(mutated, ciphertext, key, []byte("id"))
		if !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("nonce bit flip at %d not detected: %v", i, err)
		}
	}

	// Wrong associated data must fail too.
	_, err = Open(nonce, ciphertext, key, []byte("other-id"))
	assert.ErrorIs(t, err, ErrAuthFailed)

	// Wrong key.
	otherKey, err := GenerateRandom(KeySize)
	require.NoError(t, err)
	_, err = Open(nonce, ciphertext, otherKey, []byte("id"))
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestOpenRejectsTruncated(t *testing.T) {
	key, err := GenerateRandom(KeySize)
	require.NoError(t, err)

	_, err = Open([]byte("short"), []byte("x"), key, nil)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestClearBytes(t *testing.T) {
	b := []byte("sensitive")
	ClearBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not cleared", i)
		}
	}
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword(20, true)
	require.NoError(t, err)
	assert.Len(t, pw, 20)

	pw2, err := GeneratePassword(20, true)
	require.NoError(t, err)
	assert.NotEqual(t, pw, pw2)

	noSym, err := GeneratePassword(64, false)
	require.NoError(t, err)
	for _, c := range noSym {
		if !('a' <= c && c <= 'z') && !('A' <= c && c <= 'Z') && !('0' <= c && c <= '9') {
			t.Fatalf("unexpected character %q in letters-only password", c)
		}
	}

	_, err = GeneratePassword(0, true)
	assert.Error(t, err)
}
