package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	cockroacherrors "github.com/cockroachdb/errors"
)

const (
	// KeySize is the only accepted AES-256 key length.
	KeySize = 32
	// nonceSize is the GCM standard 96-bit nonce.
	nonceSize = 12
)

// Encryptor performs AES-256-GCM of opaque payloads with a random 96-bit
// nonce prepended to the ciphertext (spec §4.2).
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor validates the key is exactly 32 bytes and prepares the
// AEAD. A bad key length is a configuration error caught at open, not a
// runtime failure on first use.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, cockroacherrors.Newf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cockroacherrors.Wrap(err, "create AES cipher")
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, cockroacherrors.Wrap(err, "create GCM mode")
	}

	return &Encryptor{gcm: gcm}, nil
}

// Encrypt returns [12-byte random nonce][ciphertext+tag].
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, cockroacherrors.Wrap(err, "read random nonce")
	}
	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt requires len >= 12, splits nonce from ciphertext, and verifies
// the GCM tag.
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, cockroacherrors.Newf("ciphertext too short: %d bytes, need at least %d", len(data), nonceSize)
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, cockroacherrors.Wrap(err, "decrypt: tag verification failed")
	}
	return plaintext, nil
}
