package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

// Encryptor provides a generic interface for encryption/decryption
type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// NewAESEncryptor creates a new AES-GCM encryptor
func NewAESEncryptor(key []byte) (Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryption
	}

	return &aesEncryptor{
		gcm: gcm,
	}, nil
}

type aesEncryptor struct {
	gcm cipher.AEAD
}

func (a *aesEncryptor) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, a.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryption
	}

	return a.gcm.Seal(nonce, nonce, data, nil), nil
}

func (a *aesEncryptor) Decrypt(data []byte) ([]byte, error) {
	nonceSize := a.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecryption
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := a.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

// EncryptString seals plaintext and returns it base64-encoded for storage in
// a text column.
func EncryptString(e Encryptor, plaintext string) (string, error) {
	sealed, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func DecryptString(e Encryptor, encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryption
	}
	plain, err := e.Decrypt(sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
