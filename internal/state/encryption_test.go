package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_NoKey(t *testing.T) {
	// Without the env var, encryption is a no-op.
	os.Unsetenv(EncryptionKeyEnvVar)

	content := []byte(`{"id":"prod","serial":0}`)
	encrypted, err := Encrypt(content)
	require.NoError(t, err)
	assert.Equal(t, content, encrypted)

	decrypted, err := Decrypt(content)
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestEncryptDecrypt_WithKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "my-super-secret-encryption-key!!")

	content := []byte(`{"id":"prod","serial":42,"lineage":"test-uuid"}`)

	encrypted, err := Encrypt(content)
	require.NoError(t, err)
	assert.NotEqual(t, content, encrypted)
	assert.True(t, IsEncrypted(encrypted))

	decrypted, err := Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted([]byte("# STACKPILOT_ENCRYPTED_STATE\nbase64data")))
	assert.False(t, IsEncrypted([]byte(`{"id":"prod"}`)))
	assert.False(t, IsEncrypted([]byte("")))
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "correct-key-for-encryption!!!!!")

	content := []byte("test data")
	encrypted, err := Encrypt(content)
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "wrong-key-for-decryption!!!!!!!")
	_, err = Decrypt(encrypted)
	assert.Error(t, err)
}

func TestDecrypt_MissingKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "some-key-for-testing!!!!!!!!!!!!")

	content := []byte("test data")
	encrypted, err := Encrypt(content)
	require.NoError(t, err)

	os.Unsetenv(EncryptionKeyEnvVar)
	_, err = Decrypt(encrypted)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not set")
}
