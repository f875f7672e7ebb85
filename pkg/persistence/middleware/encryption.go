package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/sessionkit/pkg/ports"
)

// envelopeVersion marks values written by the encryption middleware.
const envelopeVersion byte = 1

var (
	// ErrMissingEnvelope is returned when a stored value was not written encrypted.
	ErrMissingEnvelope = errors.New("value is missing encrypted data envelope")

	errDecrypt = errors.New("decryption failed with all available keys")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.Cache
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts cache values using AES-GCM.
// The cache key is authenticated with each value, so values cannot be swapped between keys.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Cache) ports.Cache {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Get(ctx context.Context, key string) ([]byte, bool, error) {
	envelope, found, err := m.next.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}
	plainText, err := m.open(key, envelope)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plainText, true, nil
}

func (m *encryptionMiddleware) Put(ctx context.Context, key string, value []byte) error {
	envelope, err := m.seal(key, value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return m.next.Put(ctx, key, envelope)
}

func (m *encryptionMiddleware) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	envelope, err := m.seal(key, value)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return m.next.PutIfAbsent(ctx, key, envelope)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) (bool, error) {
	return m.next.Delete(ctx, key)
}

func (m *encryptionMiddleware) seal(key string, value []byte) ([]byte, error) {
	ciphertext, err := encrypt(value, m.config.ActiveKey, []byte(key))
	if err != nil {
		return nil, err
	}
	return append([]byte{envelopeVersion}, ciphertext...), nil
}

func (m *encryptionMiddleware) open(key string, envelope []byte) ([]byte, error) {
	if len(envelope) == 0 || envelope[0] != envelopeVersion {
		return nil, ErrMissingEnvelope
	}
	return decryptWithRotation(envelope[1:], []byte(key), m.config.ActiveKey, m.config.FallbackKeys)
}

// Helpers

func encrypt(plaintext, key, additionalData []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, additionalData), nil
}

func decryptWithRotation(ciphertext, additionalData, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey, additionalData); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, additionalData); err == nil {
			return plain, nil
		}
	}

	return nil, errDecrypt
}

func decrypt(ciphertext, key, additionalData []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertextBytes, additionalData)
	if err != nil {
		return nil, err
	}
	if plain == nil {
		plain = []byte{}
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
