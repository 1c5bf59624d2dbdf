package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the length of the raw sealing key.
	KeySize = chacha20poly1305.KeySize
	prefix  = "v1:"
	kdfInfo = "persona api key sealing"
)

var ErrMalformed = errors.New("secret: malformed sealed value")

// Sealer encrypts third-party API keys before they reach the personas table.
type Sealer struct {
	key []byte
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("secret: key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Sealer{key: k}, nil
}

// KeyFromConfig decodes a hex key. When hexKey is empty the key is derived
// from fallback with HKDF-SHA256 and derived is true.
func KeyFromConfig(hexKey, fallback string) (key []byte, derived bool, err error) {
	if hexKey = strings.TrimSpace(hexKey); hexKey != "" {
		key, err = hex.DecodeString(hexKey)
		if err != nil {
			return nil, false, fmt.Errorf("secret: decode key: %w", err)
		}
		if len(key) != KeySize {
			return nil, false, fmt.Errorf("secret: key must be %d bytes, got %d", KeySize, len(key))
		}
		return key, false, nil
	}
	if fallback == "" {
		return nil, false, errors.New("secret: no key material")
	}
	key = make([]byte, KeySize)
	r := hkdf.New(sha256.New, []byte(fallback), nil, []byte(kdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, false, fmt.Errorf("secret: derive key: %w", err)
	}
	return key, true, nil
}

// Seal returns "v1:" followed by base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("secret: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. The request path never decrypts stored keys; Open is
// for key rotation and support tooling.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return "", ErrMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", ErrMalformed
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("secret: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformed
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("secret: open: %w", err)
	}
	return string(plain), nil
}
