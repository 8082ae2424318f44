// Package keyset derives and holds the per-tenant key material for the
// pseudonym vault.
//
// Identities are stored two ways: an authenticated AES-GCM ciphertext under
// the tenant's encryption key (reversible, so resolution is O(1)), and a
// deterministic HMAC digest under the tenant's index key (one-way, so lookups
// and the unique (tenant, digest) constraint work without decryption).
//
// Shredding a tenant revokes its keys: every future decryption for that
// tenant fails, which retires all of its vault entries at once.
package keyset

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
)

const keySize = 32

// Keyring derives per-tenant keys from a master key and tracks shredded
// tenants.
type Keyring struct {
	master []byte

	mu       sync.RWMutex
	shredded map[id.TenantID]bool
}

// NewKeyring creates a keyring over the given master key.
func NewKeyring(master []byte) (*Keyring, error) {
	if len(master) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vault master key cannot be empty")
	}
	return &Keyring{
		master:   append([]byte(nil), master...),
		shredded: make(map[id.TenantID]bool),
	}, nil
}

// deriveKey expands the master key into a tenant- and purpose-bound key.
func (k *Keyring) deriveKey(tenantID id.TenantID, purpose string) ([]byte, error) {
	info := []byte("vault:" + purpose + ":" + tenantID.String())
	r := hkdf.New(sha256.New, k.master, nil, info)
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive tenant key: %w", err)
	}
	return key, nil
}

func (k *Keyring) isShredded(tenantID id.TenantID) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.shredded[tenantID]
}

// EncryptIdentity seals an identity under the tenant's encryption key.
// Output is base64(nonce || ciphertext).
func (k *Keyring) EncryptIdentity(tenantID id.TenantID, identity id.UserID) (string, error) {
	if k.isShredded(tenantID) {
		return "", dErrors.New(dErrors.CodeForbidden, "tenant key has been shredded")
	}
	key, err := k.deriveKey(tenantID, "enc")
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(identity), []byte(tenantID))
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// DecryptIdentity opens a ciphertext produced by EncryptIdentity.
// Fails for shredded tenants and for ciphertexts bound to another tenant.
func (k *Keyring) DecryptIdentity(tenantID id.TenantID, ciphertext string) (id.UserID, error) {
	if k.isShredded(tenantID) {
		return "", dErrors.New(dErrors.CodeForbidden, "tenant key has been shredded")
	}
	raw, err := base64.RawStdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "malformed vault ciphertext")
	}
	key, err := k.deriveKey(tenantID, "enc")
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", dErrors.New(dErrors.CodeInternal, "malformed vault ciphertext")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, []byte(tenantID))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "vault ciphertext failed authentication")
	}
	return id.UserID(plain), nil
}

// Digest produces the deterministic lookup digest for an identity. The same
// (tenant, identity) pair always digests to the same value, which backs the
// unique index replacing the old check-then-act insert.
func (k *Keyring) Digest(tenantID id.TenantID, identity id.UserID) (string, error) {
	key, err := k.deriveKey(tenantID, "idx")
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(identity))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Shred revokes the tenant's keys. All future decryption for the tenant
// fails; digests keep working so duplicate detection survives.
func (k *Keyring) Shred(tenantID id.TenantID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.shredded[tenantID] = true
}
