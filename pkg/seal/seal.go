// Package seal implements the at-rest format shared by the encrypted
// backends: payloads are sealed with AES-256-GCM under a key derived from
// a passphrase and a stored salt via scrypt, and travel as self-contained
// nonce plus ciphertext envelopes.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	saltLength = 32
	keyLength  = 32

	// Interactive scrypt cost parameters, per the package documentation.
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// Sealer holds the AEAD for one derived key.
type Sealer struct {
	aead cipher.AEAD
}

// New derives an AES-256 key from the passphrase and salt and returns a
// Sealer around it.
func New(passphrase, salt []byte) (*Sealer, error) {
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, err
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// NewSalt returns a fresh random salt for New.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Seal encrypts data into an envelope with the nonce prepended to the
// ciphertext.
func (s *Sealer) Seal(data []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, data, nil), nil
}

// Open decrypts an envelope produced by Seal. Authentication failure, a
// truncated envelope or a key derived from the wrong passphrase all fail.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("sealed envelope too short")
	}
	nonce, cipherData := sealed[:nonceSize], sealed[nonceSize:]
	return s.aead.Open(cipherData[:0], nonce, cipherData, nil)
}
