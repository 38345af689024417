package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
)

// MessageEncryptionService handles encryption and decryption of message content at rest
type MessageEncryptionService struct {
	aead cipher.AEAD
}

// EncryptedContent represents encrypted message content with metadata
type EncryptedContent struct {
	Data      []byte `json:"data"`
	Nonce     []byte `json:"nonce"`
	Encrypted bool   `json:"encrypted"`
}

// NewMessageEncryptionService creates a new message encryption service.
// Returns nil service if no key is provided.
func NewMessageEncryptionService(key []byte) (*MessageEncryptionService, error) {
	if len(key) == 0 {
		return nil, nil
	}

	// AES supports 16, 24, or 32 bytes keys.
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}

	return &MessageEncryptionService{aead: aead}, nil
}

// IsEnabled returns whether encryption is enabled
func (es *MessageEncryptionService) IsEnabled() bool {
	return es != nil && es.aead != nil
}

// EncryptContent encrypts message content and returns the JSON envelope as a string.
func (es *MessageEncryptionService) EncryptContent(content string) (string, error) {
	if !es.IsEnabled() {
		return content, nil
	}

	nonce := make([]byte, es.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	envelope, err := json.Marshal(&EncryptedContent{
		Data:      es.aead.Seal(nil, nonce, []byte(content), nil),
		Nonce:     nonce,
		Encrypted: true,
	})
	if err != nil {
		return "", err
	}
	return string(envelope), nil
}

// DecryptContent decrypts message content. Content which is not an encrypted envelope is returned as is
// so messages stored before encryption was enabled remain readable.
func (es *MessageEncryptionService) DecryptContent(content string) (string, error) {
	if !es.IsEnabled() {
		return content, nil
	}

	var ec EncryptedContent
	if err := json.Unmarshal([]byte(content), &ec); err != nil || !ec.Encrypted {
		return content, nil
	}

	plain, err := es.aead.Open(nil, ec.Nonce, ec.Data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt content: %w", err)
	}
	return string(plain), nil
}

// IsMessageEncryptionEnabled returns whether message encryption is currently enabled
func IsMessageEncryptionEnabled() bool {
	return messageEncryptionService.IsEnabled()
}
