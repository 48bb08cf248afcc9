package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// SealMethod names the envelope format written by Sealer.
const SealMethod = "secretbox-v1"

// SealKeyEnv is the secret holding the master key for private intents.
const SealKeyEnv = "INTENTMARKET_SEAL_KEY"

// SealKeyPreviousEnv holds the master key being rotated out. Payloads sealed
// under it can still be opened; nothing new is sealed with it.
const SealKeyPreviousEnv = "INTENTMARKET_SEAL_KEY_PREVIOUS"

const nonceSize = 24

var (
	// ErrNoSealKey is returned when private intents are used without a key.
	ErrNoSealKey = errors.New("seal key not configured")
	// ErrOpen is returned for payloads that fail authentication.
	ErrOpen = errors.New("sealed payload cannot be opened")
)

// Sealer encrypts private intent fields with NaCl secretbox. Box keys are
// derived from the vault's master secrets through HKDF-SHA256 on every
// call, so a vault reload rotates them without restarting.
type Sealer struct {
	vault *Vault
	info  []byte
}

// NewSealer returns a Sealer reading its master secret from vault.
func NewSealer(vault *Vault) *Sealer {
	return &Sealer{vault: vault, info: []byte("intentmarket private intent")}
}

// Enabled reports whether a master secret is loaded.
func (s *Sealer) Enabled() bool {
	return s.vault.Get(SealKeyEnv) != ""
}

func (s *Sealer) key() (*[32]byte, error) {
	return s.derive(s.vault.Get(SealKeyEnv))
}

func (s *Sealer) derive(master string) (*[32]byte, error) {
	if master == "" {
		return nil, ErrNoSealKey
	}
	var k [32]byte
	r := hkdf.New(sha256.New, []byte(master), nil, s.info)
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return &k, nil
}

// Seal encrypts plaintext and returns base64(nonce || box).
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	k, err := s.key()
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], plaintext, &nonce, k)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. It tries the current master key, then the previous
// one while a rotation is in progress.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	k, err := s.key()
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed payload: %w", ErrOpen)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	if plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, k); ok {
		return plain, nil
	}

	prev := s.vault.Get(SealKeyPreviousEnv)
	if prev == "" {
		return nil, ErrOpen
	}
	pk, err := s.derive(prev)
	if err != nil {
		return nil, err
	}
	if plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, pk); ok {
		return plain, nil
	}
	return nil, ErrOpen
}
