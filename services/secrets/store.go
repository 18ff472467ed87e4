// Package secrets stores backend credentials encrypted at rest.
//
// Every secret lives in its own file named after the SHA-256 of its key and
// holds base64(nonce || secretbox). The box key is either a random master key
// kept next to the secrets or derived from a passphrase with scrypt.
package secrets

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"resolvarr/services/debrid"
)

const (
	keySize       = 32
	nonceSize     = 24
	saltSize      = 16
	masterKeyFile = "master.key"
	saltFile      = "salt"
	secretSuffix  = ".secret"
)

var (
	// ErrMalformedSecret is returned when a stored secret cannot be decoded or opened.
	ErrMalformedSecret = errors.New("malformed secret")
	// ErrEmptyKey is returned for blank secret keys.
	ErrEmptyKey = errors.New("secret key is empty")
)

// Store is a debrid.SecretStore backed by an afero filesystem.
type Store struct {
	fs  afero.Fs
	dir string
	key [keySize]byte
	mu  sync.RWMutex
}

var _ debrid.SecretStore = (*Store)(nil)

// NewStore opens (or initializes) a secret directory. With an empty
// passphrase a random master key is generated on first use.
func NewStore(fs afero.Fs, dir, passphrase string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create secrets dir: %w", err)
	}
	s := &Store{fs: fs, dir: dir}

	var err error
	if passphrase == "" {
		err = s.loadMasterKey()
	} else {
		err = s.deriveKey(passphrase)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadMasterKey() error {
	path := filepath.Join(s.dir, masterKeyFile)
	raw, err := afero.ReadFile(s.fs, path)
	switch {
	case err == nil:
		decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil || len(decoded) != keySize {
			return fmt.Errorf("master key %s: %w", path, ErrMalformedSecret)
		}
		copy(s.key[:], decoded)
		return nil
	case errors.Is(err, os.ErrNotExist):
		if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
			return fmt.Errorf("generate master key: %w", err)
		}
		if err := afero.WriteFile(s.fs, path, []byte(hex.EncodeToString(s.key[:])), 0o600); err != nil {
			return fmt.Errorf("write master key: %w", err)
		}
		log.Info().Str("path", path).Msg("generated new secrets master key")
		return nil
	default:
		return fmt.Errorf("read master key: %w", err)
	}
}

func (s *Store) deriveKey(passphrase string) error {
	path := filepath.Join(s.dir, saltFile)
	salt, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		if err := afero.WriteFile(s.fs, path, salt, 0o600); err != nil {
			return fmt.Errorf("write salt: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read salt: %w", err)
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}
	copy(s.key[:], derived)
	return nil
}

func (s *Store) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+secretSuffix)
}

// GetSecret returns the plaintext stored under key or debrid.ErrSecretNotFound.
func (s *Store) GetSecret(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}

	s.mu.RLock()
	raw, err := afero.ReadFile(s.fs, s.path(key))
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return "", debrid.ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil || len(data) < nonceSize+secretbox.Overhead {
		return "", ErrMalformedSecret
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrMalformedSecret
	}
	return string(plain), nil
}

// SetSecret encrypts value and stores it under key, replacing any previous value.
func (s *Store) SetSecret(ctx context.Context, value, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	encoded := base64.StdEncoding.EncodeToString(sealed)

	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.path(key)
	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("write secret: %w", err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("commit secret: %w", err)
	}
	return nil
}

// DeleteSecret removes key. Deleting a missing key is not an error.
func (s *Store) DeleteSecret(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
