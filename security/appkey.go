package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

type Option func(*AppKeySealer)

// AppKeySealer seals payloads with AES-256-GCM under one application key.
// Key material that is not a valid AES key length is hashed to 32 bytes.
type AppKeySealer struct {
	aead    cipher.AEAD
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(s *AppKeySealer) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			s.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(s *AppKeySealer) {
		if version > 0 {
			s.version = version
		}
	}
}

func NewAppKeySealer(keyMaterial []byte, opts ...Option) (*AppKeySealer, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	sealer := &AppKeySealer{aead: aead, keyID: "app-key", version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(sealer)
		}
	}
	return sealer, nil
}

func NewAppKeySealerFromString(key string, opts ...Option) (*AppKeySealer, error) {
	return NewAppKeySealer([]byte(key), opts...)
}

func (s *AppKeySealer) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("security: sealer is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	return encodeEnvelope(envelope{
		KeyID:      s.keyID,
		Version:    s.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(s.aead.Seal(nil, nonce, plaintext, s.additionalData())),
	})
}

func (s *AppKeySealer) Open(_ context.Context, sealed []byte) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("security: sealer is nil")
	}
	env, err := decodeEnvelope(sealed)
	if err != nil {
		return nil, err
	}
	return s.open(env)
}

func (s *AppKeySealer) open(env envelope) ([]byte, error) {
	if env.KeyID != s.keyID || env.Version != s.version {
		return nil, fmt.Errorf("security: key mismatch: got %s@%d want %s@%d", env.KeyID, env.Version, s.keyID, s.version)
	}
	nonce, err := decodePart("nonce", env.Nonce)
	if err != nil {
		return nil, err
	}
	ciphertext, err := decodePart("ciphertext", env.Ciphertext)
	if err != nil {
		return nil, err
	}
	if len(nonce) != s.aead.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce length %d", len(nonce))
	}
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, s.additionalData())
	if err != nil {
		return nil, fmt.Errorf("security: open payload: %w", err)
	}
	return plaintext, nil
}

// additionalData binds the ciphertext to the key identity so a relabeled
// envelope fails to open.
func (s *AppKeySealer) additionalData() []byte {
	return []byte(fmt.Sprintf("%s@%d", s.keyID, s.version))
}

func (s *AppKeySealer) KeyID() string {
	if s == nil {
		return ""
	}
	return s.keyID
}

func (s *AppKeySealer) Version() int {
	if s == nil {
		return 0
	}
	return s.version
}

func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		return append([]byte(nil), value...)
	}
	sum := sha256.Sum256(value)
	return sum[:]
}
