// Package envelope implements the symmetric envelope used for secure offline
// issuance: AES-256-CBC with PKCS#7 padding under a per-event session key,
// rendered as hex(iv):hex(ciphertext).
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eventpass/eventpass-api/internal/domain"
)

const (
	KeySize = 32
	IVSize  = aes.BlockSize
)

// Payload is what an organizer device seals for a participant.
type Payload struct {
	BadgeID   string `json:"bid"`
	Salt      string `json:"salt"`
	Timestamp int64  `json:"ts"`
}

// NewSessionKey returns 32 random bytes, hex encoded.
func NewSessionKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

func decodeKey(keyHex string) ([]byte, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: session key is not hex", domain.ErrDecryption)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: session key must be %d bytes, got %d", domain.ErrDecryption, KeySize, len(key))
	}
	return key, nil
}

// Seal serializes v to JSON and encrypts it under keyHex.
func Seal(v any, keyHex string) (string, error) {
	if keyHex == "" {
		return "", domain.ErrMissingSessionKey
	}
	key, err := decodeKey(keyHex)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Open decrypts env under keyHex and unmarshals the plaintext into v. Every
// failure is reported as domain.ErrDecryption.
func Open(env, keyHex string, v any) error {
	if keyHex == "" {
		return domain.ErrMissingSessionKey
	}
	key, err := decodeKey(keyHex)
	if err != nil {
		return err
	}

	ivHex, ctHex, ok := strings.Cut(env, ":")
	if !ok {
		return fmt.Errorf("%w: missing separator", domain.ErrDecryption)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != IVSize {
		return fmt.Errorf("%w: bad iv", domain.ErrDecryption)
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: bad ciphertext", domain.ErrDecryption)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = unpad(plaintext, aes.BlockSize)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}
	return nil
}

// CommitmentHash binds an envelope to a participant. Organizer and server
// must compute it from the exact same envelope string.
func CommitmentHash(env, participantID string) string {
	sum := sha256.Sum256([]byte(env + participantID))
	return hex.EncodeToString(sum[:])
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("%w: bad padding", domain.ErrDecryption)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("%w: bad padding", domain.ErrDecryption)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", domain.ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}
