package cookies

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	keyInfo   = "idp-owox cookie sealing v1"
)

var ErrUnsealable = errors.New("cookie value cannot be opened")

// Sealer encrypts and authenticates cookie values with NaCl secretbox.
type Sealer struct {
	key [keySize]byte
}

// NewSealer derives the box key from secret with HKDF-SHA256. An empty secret
// yields a random key, so sealed values do not survive a restart.
func NewSealer(secret string) (*Sealer, error) {
	s := &Sealer{}
	if secret == "" {
		if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
			return nil, err
		}
		return s, nil
	}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// Seal returns base64url(nonce || box).
func (s *Sealer) Seal(plain []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(value string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return nil, ErrUnsealable
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnsealable
	}
	return plain, nil
}
