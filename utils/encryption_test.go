package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef" // 32 bytes

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	for _, plaintext := range []string{"smtp-password", "a", "token with spaces and ütf-8"} {
		ciphertext, err := enc.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		got, err := enc.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptorEmptyStringPassthrough(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ciphertext)

	plaintext, err := enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestEncryptorCiphertextNotReused(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	a, err := enc.Encrypt("same secret")
	require.NoError(t, err)
	b, err := enc.Encrypt("same secret")
	require.NoError(t, err)

	// random IV per call
	assert.NotEqual(t, a, b)
}

func TestNewEncryptorRejectsBadKeyLength(t *testing.T) {
	for _, key := range []string{"", "short", "seventeen-bytes!!"} {
		_, err := NewEncryptor(key)
		assert.Error(t, err, "key %q", key)
	}

	for _, key := range []string{"0123456789abcdef", "0123456789abcdef01234567", testKey} {
		_, err := NewEncryptor(key)
		assert.NoError(t, err, "key %q", key)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	_, err = enc.Decrypt("not base64 at all %%%")
	assert.Error(t, err)
}
