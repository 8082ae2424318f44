package keyset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
)

func newTestKeyring(t *testing.T) *Keyring {
	t.Helper()
	k, err := NewKeyring([]byte("test-master-key"))
	require.NoError(t, err)
	return k
}

func TestNewKeyring_RejectsEmptyMaster(t *testing.T) {
	_, err := NewKeyring(nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	k := newTestKeyring(t)

	ciphertext, err := k.EncryptIdentity("acme", "u123")
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "u123")

	identity, err := k.DecryptIdentity("acme", ciphertext)
	require.NoError(t, err)
	assert.Equal(t, id.UserID("u123"), identity)
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	k := newTestKeyring(t)

	first, err := k.EncryptIdentity("acme", "u123")
	require.NoError(t, err)
	second, err := k.EncryptIdentity("acme", "u123")
	require.NoError(t, err)

	// Fresh nonce per call; equality lookups go through Digest instead.
	assert.NotEqual(t, first, second)
}

func TestDecrypt_TenantIsolation(t *testing.T) {
	k := newTestKeyring(t)

	ciphertext, err := k.EncryptIdentity("acme", "u123")
	require.NoError(t, err)

	_, err = k.DecryptIdentity("globex", ciphertext)
	require.Error(t, err, "ciphertext sealed for one tenant must not open under another")
}

func TestDecrypt_MalformedInput(t *testing.T) {
	k := newTestKeyring(t)

	_, err := k.DecryptIdentity("acme", "not base64!!!")
	require.Error(t, err)

	_, err = k.DecryptIdentity("acme", "QQ")
	require.Error(t, err)
}

func TestDigest_Deterministic(t *testing.T) {
	k := newTestKeyring(t)

	first, err := k.Digest("acme", "u123")
	require.NoError(t, err)
	second, err := k.Digest("acme", "u123")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := k.Digest("acme", "u456")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestDigest_TenantScoped(t *testing.T) {
	k := newTestKeyring(t)

	acme, err := k.Digest("acme", "u123")
	require.NoError(t, err)
	globex, err := k.Digest("globex", "u123")
	require.NoError(t, err)

	assert.NotEqual(t, acme, globex, "same identity must digest differently per tenant")
}

func TestShred(t *testing.T) {
	k := newTestKeyring(t)

	ciphertext, err := k.EncryptIdentity("acme", "u123")
	require.NoError(t, err)

	k.Shred("acme")

	_, err = k.DecryptIdentity("acme", ciphertext)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = k.EncryptIdentity("acme", "u456")
	require.Error(t, err)

	// Other tenants are untouched.
	other, err := k.EncryptIdentity("globex", "u123")
	require.NoError(t, err)
	_, err = k.DecryptIdentity("globex", other)
	require.NoError(t, err)

	// Digests survive so duplicate detection still works.
	_, err = k.Digest("acme", "u123")
	require.NoError(t, err)
}
