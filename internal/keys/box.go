package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// EncryptionAES256GCM tags boxes sealed by Encrypt.
const EncryptionAES256GCM = 1

// ErrBadKey is returned when a login key has the wrong size.
var ErrBadKey = errors.New("login key must be 32 bytes")

// EncryptedBox is a sealed blob in the login server's wire shape.
type EncryptedBox struct {
	EncryptionType int    `json:"encryptionType"`
	IV             string `json:"iv_hex"`
	Data           string `json:"data_base64"`
}

// Encrypt seals data under a 32-byte key.
func Encrypt(rand io.Reader, data, key []byte) (EncryptedBox, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return EncryptedBox{}, err
	}

	nonce, err := randomBytes(rand, gcm.NonceSize())
	if err != nil {
		return EncryptedBox{}, fmt.Errorf("nonce: %w", err)
	}

	return EncryptedBox{
		EncryptionType: EncryptionAES256GCM,
		IV:             hex.EncodeToString(nonce),
		Data:           base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, data, nil)),
	}, nil
}

// Decrypt opens a box produced by Encrypt.
func Decrypt(box EncryptedBox, key []byte) ([]byte, error) {
	if box.EncryptionType != EncryptionAES256GCM {
		return nil, fmt.Errorf("unknown encryption type %d", box.EncryptionType)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := hex.DecodeString(box.IV)
	if err != nil {
		return nil, fmt.Errorf("iv: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("iv: want %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	sealed, err := base64.StdEncoding.DecodeString(box.Data)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("open box: %w", err)
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrBadKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
