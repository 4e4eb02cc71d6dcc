package save

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"spheres/internal/game"
)

const (
	exportSalt       = "spheres-salt"
	exportIterations = 200_000
	exportKeyLen     = 32
	exportNonceLen   = 12
)

func deriveKey(password string) []byte {
	return pbkdf2.Key([]byte(password), []byte(exportSalt), exportIterations, exportKeyLen, sha256.New)
}

func newGCM(password string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, exportNonceLen)
}

// Export encrypts rec into a password-protected, URL-safe string:
// base64url(nonce || AES-256-GCM(json)).
func Export(rec game.Record, password string) (string, error) {
	plain, err := Encode(rec)
	if err != nil {
		return "", err
	}
	aead, err := newGCM(password)
	if err != nil {
		return "", fmt.Errorf("export cipher: %w", err)
	}
	nonce := make([]byte, exportNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("export nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Import reverses Export. Padding and surrounding whitespace are tolerated.
func Import(blob, password string) (game.Record, error) {
	blob = strings.TrimRight(strings.TrimSpace(blob), "=")
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return game.Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	aead, err := newGCM(password)
	if err != nil {
		return game.Record{}, fmt.Errorf("import cipher: %w", err)
	}
	if len(raw) < exportNonceLen+aead.Overhead() {
		return game.Record{}, fmt.Errorf("%w: export too short", ErrCorrupt)
	}
	plain, err := aead.Open(nil, raw[:exportNonceLen], raw[exportNonceLen:], nil)
	if err != nil {
		return game.Record{}, ErrWrongPassword
	}
	return Decode(plain)
}
