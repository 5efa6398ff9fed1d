// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/heyqbnk/mini-apps-backend-template/lib/secret"
)

// Keypair is an age x25519 identity and its recipient. Close releases
// the identity.
type Keypair struct {
	// Identity is the AGE-SECRET-KEY-1... string.
	Identity *secret.Buffer

	// Recipient is the age1... public key. Safe to publish.
	Recipient string
}

// Close zeros the identity. Idempotent.
func (k *Keypair) Close() error {
	if k.Identity == nil {
		return nil
	}
	return k.Identity.Close()
}

// GenerateKeypair creates a fresh x25519 identity.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	protected, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting age identity: %w", err)
	}
	return &Keypair{Identity: protected, Recipient: identity.Recipient().String()}, nil
}

// Seal encrypts plaintext to every recipient and returns standard
// base64 text suitable for a sealed credentials file.
func Seal(plaintext []byte, recipients ...string) (string, error) {
	if len(recipients) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}

	parsed := make([]age.Recipient, 0, len(recipients))
	for _, key := range recipients {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("parsing recipient %q: %w", key, err)
		}
		parsed = append(parsed, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, parsed...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Open decrypts base64 ciphertext with identity. The identity is
// borrowed, not closed. Surrounding whitespace in ciphertext is
// ignored. An empty plaintext is an error: a sealed file always holds
// at least one credential.
func Open(ciphertext string, identity *secret.Buffer) (*secret.Buffer, error) {
	parsed, err := age.ParseX25519Identity(identity.String())
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace([]byte(ciphertext))))
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), parsed)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed payload is empty")
	}
	return secret.NewFromBytes(plaintext)
}

// OpenFile reads a sealed file and the identity file that unlocks it.
func OpenFile(sealedPath, identityPath string) (*secret.Buffer, error) {
	ciphertext, err := os.ReadFile(sealedPath)
	if err != nil {
		return nil, fmt.Errorf("reading sealed file: %w", err)
	}
	identity, err := secret.ReadFromPath(identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	defer identity.Close()

	plaintext, err := Open(string(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", sealedPath, err)
	}
	return plaintext, nil
}

// ValidateRecipient reports whether key is a usable age x25519
// recipient.
func ValidateRecipient(key string) error {
	if _, err := age.ParseX25519Recipient(key); err != nil {
		return fmt.Errorf("invalid age recipient: %w", err)
	}
	return nil
}
