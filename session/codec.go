package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrDecryptionFailed is returned when a stored session blob is malformed,
// truncated, or was written under a different key.
var ErrDecryptionFailed = errors.New("session blob decryption failed")

// ErrInvalidEncryptionKey is returned when the configured key is not a
// hex-encoded 256-bit value.
var ErrInvalidEncryptionKey = errors.New("invalid encryption key")

const ivLength = 16

// Codec encrypts and decrypts serialized session records with AES-256-CBC.
//
// With an empty key the codec degrades to plain serialization: records are
// stored without confidentiality. This is an explicit, insecure-by-
// configuration operating mode for local development, not a silent failure.
type Codec struct {
	key []byte
}

// NewCodec creates a [Codec] from a hex-encoded 256-bit key. An empty
// hexKey selects plain mode.
func NewCodec(hexKey string) (*Codec, error) {
	if hexKey == "" {
		return &Codec{}, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncryptionKey, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: need 32 bytes, got %d", ErrInvalidEncryptionKey, len(key))
	}

	return &Codec{key: key}, nil
}

// Encrypt seals plaintext under a fresh random IV and returns
// "hex(iv):hex(ciphertext)". In plain mode the plaintext passes through
// unchanged.
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	if len(c.key) == 0 {
		return string(plaintext), nil
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	padded := padPKCS7(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses [Codec.Encrypt]. Any structural defect in the blob maps
// to [ErrDecryptionFailed]; callers treat that as not-found, never fatal.
func (c *Codec) Decrypt(blob string) ([]byte, error) {
	if len(c.key) == 0 {
		return []byte(blob), nil
	}

	ivHex, ctHex, found := strings.Cut(blob, ":")
	if !found {
		return nil, fmt.Errorf("%w: missing iv separator", ErrDecryptionFailed)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != ivLength {
		return nil, fmt.Errorf("%w: bad iv", ErrDecryptionFailed)
	}

	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: truncated ciphertext", ErrDecryptionFailed)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpadPKCS7(plaintext, block.BlockSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return unpadded, nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
