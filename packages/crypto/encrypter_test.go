package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncrypter_RoundTrip(t *testing.T) {
	enc, err := New("app-secret-key")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("session-id-123")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(ciphertext))
	assert.NotContains(t, ciphertext, "session-id-123")

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "session-id-123", plaintext)
}

func TestEncrypter_EmptyAppKey(t *testing.T) {
	_, err := New("")

	require.Error(t, err)
	var ee *EncryptionError
	assert.ErrorAs(t, err, &ee)
}

func TestEncrypter_DistinctCiphertexts(t *testing.T) {
	enc, err := New("app-secret-key")
	require.NoError(t, err)

	a, err := enc.Encrypt("value")
	require.NoError(t, err)
	b, err := enc.Encrypt("value")
	require.NoError(t, err)

	// Random nonces mean the same plaintext never repeats on the wire.
	assert.NotEqual(t, a, b)
}

func TestEncrypter_TamperedCiphertext(t *testing.T) {
	enc, err := New("app-secret-key")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("value")
	require.NoError(t, err)

	tampered := ciphertext[:len(ciphertext)-2] + "xx"
	_, err = enc.Decrypt(tampered)

	require.Error(t, err)
	assert.True(t, IsDecryptionError(err))
}

func TestEncrypter_WrongKey(t *testing.T) {
	enc1, err := New("key-one")
	require.NoError(t, err)
	enc2, err := New("key-two")
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt("value")
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.True(t, IsDecryptionError(err))
}

func TestEncrypter_PlainValue(t *testing.T) {
	enc, err := New("app-secret-key")
	require.NoError(t, err)

	_, err = enc.Decrypt("not-encrypted")
	assert.True(t, IsDecryptionError(err))
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted("e:abcdef"))
	assert.False(t, IsEncrypted("abcdef"))
	assert.False(t, IsEncrypted(""))
}
