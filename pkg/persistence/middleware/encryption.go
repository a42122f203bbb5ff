package middleware

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
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

// envelopeKey holds the ciphertext inside the stored envelope.
const envelopeKey = "__encrypted__"

type encryptionMiddleware struct {
	next   ports.SlotStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts pending state using AES-GCM (Envelope Encryption).
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.SlotStore) ports.SlotStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

// ParseKeys decodes base64 AES-256 keys, the first being the active one.
func ParseKeys(encoded ...string) (EncryptionConfig, error) {
	var cfg EncryptionConfig
	for i, e := range encoded {
		key, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			return EncryptionConfig{}, fmt.Errorf("key %d is not base64: %w", i, err)
		}
		if len(key) != 32 {
			return EncryptionConfig{}, fmt.Errorf("key %d must be 32 bytes, got %d", i, len(key))
		}
		if i == 0 {
			cfg.ActiveKey = key
			continue
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	if cfg.ActiveKey == nil {
		return EncryptionConfig{}, errors.New("no encryption key given")
	}
	return cfg, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, identity string, state *domain.PendingSlotState) error {
	// 1. Serialize real state
	plainText, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal pending state: %w", err)
	}

	// 2. Encrypt
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt pending state: %w", err)
	}

	// 3. Create envelope
	// Only timestamps stay visible so stores can still apply expiry.
	envelope := &domain.PendingSlotState{
		Identity:  state.Identity,
		Arguments: map[string]any{envelopeKey: base64.StdEncoding.EncodeToString(ciphertext)},
		CreatedAt: state.CreatedAt,
		UpdatedAt: state.UpdatedAt,
		ExpiresAt: state.ExpiresAt,
	}

	return m.next.Save(ctx, identity, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	// 1. Load envelope
	envelope, err := m.next.Load(ctx, identity)
	if err != nil {
		return nil, err
	}

	// 2. Extract ciphertext
	encryptedStr, ok := envelope.Arguments[envelopeKey].(string)
	if !ok {
		// Fail secure: with encryption configured, plain entries are not trusted.
		return nil, errors.New("pending state is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	// 3. Decrypt (Try Active, then Fallback)
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt pending state: %w", err)
	}

	// 4. Deserialize
	var state domain.PendingSlotState
	dec := json.NewDecoder(bytes.NewReader(plainText))
	dec.UseNumber()
	if err := dec.Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted state: %w", err)
	}

	return &state, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, identity string) error {
	return m.next.Delete(ctx, identity)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
