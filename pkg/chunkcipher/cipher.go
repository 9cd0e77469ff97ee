// Package chunkcipher encrypts and decrypts individual file chunks with AES-256-CTR.
//
// Every chunk gets its own random 16-byte IV. The key is derived once from a
// configured secret and held for the lifetime of the process.
package chunkcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// IVSize is the length of a chunk IV in bytes.
	IVSize = aes.BlockSize
	// KeySize is the length of the derived AES-256 key in bytes.
	KeySize = 32
)

// KeyDerivation selects how the AES key is obtained from the configured secret.
type KeyDerivation string

const (
	DeriveHKDF   KeyDerivation = "hkdf-sha256"
	DeriveSHA256 KeyDerivation = "sha256"
)

const hkdfInfo = "chunk-encryption-key/v1"

var (
	ErrEmptySecret = errors.New("chunkcipher: empty secret")
	ErrInvalidIV   = errors.New("chunkcipher: invalid iv")
)

// Cipher holds the block cipher for the derived key.
type Cipher struct {
	block cipher.Block
}

// DeriveKey turns a configured secret into a 32-byte key.
// DeriveSHA256 reproduces keys of deployments that hashed the secret directly.
func DeriveKey(secret string, mode KeyDerivation) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	switch mode {
	case DeriveSHA256:
		sum := sha256.Sum256([]byte(secret))
		return sum[:], nil
	case DeriveHKDF, "":
		key := make([]byte, KeySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
			return nil, fmt.Errorf("chunkcipher: derive key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("chunkcipher: unknown key derivation %q", mode)
	}
}

// New builds a Cipher from a raw 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("chunkcipher: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block}, nil
}

// NewFromSecret derives the key from secret and builds a Cipher.
func NewFromSecret(secret string, mode KeyDerivation) (*Cipher, error) {
	key, err := DeriveKey(secret, mode)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// NewIV returns a fresh random IV.
func NewIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("chunkcipher: read random iv: %w", err)
	}
	return iv, nil
}

// ParseIV decodes a hex encoded IV.
func ParseIV(s string) ([]byte, error) {
	iv, err := hex.DecodeString(s)
	if err != nil || len(iv) != IVSize {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIV, s)
	}
	return iv, nil
}

// XORKeyStream encrypts or decrypts src into dst. dst and src may overlap entirely.
func (c *Cipher) XORKeyStream(iv, dst, src []byte) error {
	stream, err := c.stream(iv)
	if err != nil {
		return err
	}
	stream.XORKeyStream(dst, src)
	return nil
}

// EncryptReader returns a reader yielding the ciphertext of r under iv.
func (c *Cipher) EncryptReader(r io.Reader, iv []byte) (io.Reader, error) {
	stream, err := c.stream(iv)
	if err != nil {
		return nil, err
	}
	return &cipher.StreamReader{S: stream, R: r}, nil
}

// DecryptReader returns a reader yielding the plaintext of r under iv.
func (c *Cipher) DecryptReader(r io.Reader, iv []byte) (io.Reader, error) {
	// CTR is symmetric.
	return c.EncryptReader(r, iv)
}

func (c *Cipher) stream(iv []byte) (cipher.Stream, error) {
	if len(iv) != IVSize {
		return nil, ErrInvalidIV
	}
	return cipher.NewCTR(c.block, iv), nil
}
