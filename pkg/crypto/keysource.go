package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

const (
	DefaultKeyringService = "ekaya-dbclient"
	DefaultKeyringAccount = "master-key"
	DefaultKeyringTimeout = 5 * time.Second
)

// KeySourceConfig describes where the master key comes from.
type KeySourceConfig struct {
	// ExplicitKey, when set, wins over every other source.
	ExplicitKey string
	// UseKeyring enables the OS keychain (macOS Keychain, Secret Service, Windows Credential Manager).
	UseKeyring     bool
	KeyringService string
	KeyringAccount string
	// KeyringTimeout bounds each keyring call; some Linux sessions hang with no Secret Service.
	KeyringTimeout time.Duration
	// KeyFile is the fallback location, written with mode 0600.
	KeyFile string
}

// KeySource loads or creates the master key used by CredentialEncryptor.
type KeySource struct {
	cfg    KeySourceConfig
	logger *zap.Logger
}

// NewKeySource creates a KeySource, filling keyring defaults.
func NewKeySource(cfg KeySourceConfig, logger *zap.Logger) *KeySource {
	if cfg.KeyringService == "" {
		cfg.KeyringService = DefaultKeyringService
	}
	if cfg.KeyringAccount == "" {
		cfg.KeyringAccount = DefaultKeyringAccount
	}
	if cfg.KeyringTimeout <= 0 {
		cfg.KeyringTimeout = DefaultKeyringTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeySource{cfg: cfg, logger: logger}
}

// Load returns the master key. Lookup order:
//  1. explicit key
//  2. existing keyring entry
//  3. existing key file
//  4. new key stored in the keyring
//  5. new key written to the key file
func (s *KeySource) Load() (string, error) {
	if s.cfg.ExplicitKey != "" {
		return s.cfg.ExplicitKey, nil
	}

	if s.cfg.UseKeyring {
		key, err := s.keyringGet()
		switch {
		case err == nil && key != "":
			s.logger.Debug("master key loaded from keyring", zap.String("service", s.cfg.KeyringService))
			return key, nil
		case errors.Is(err, keyring.ErrNotFound):
		default:
			s.logger.Warn("keyring unavailable, using key file", zap.Error(err))
		}
	}

	if key, err := s.readKeyFile(); err == nil {
		return key, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	key, err := GenerateKey()
	if err != nil {
		return "", err
	}

	if s.cfg.UseKeyring {
		err := s.keyringSet(key)
		if err == nil {
			s.logger.Info("created master key in keyring", zap.String("service", s.cfg.KeyringService))
			return key, nil
		}
		s.logger.Warn("failed to store master key in keyring, using key file", zap.Error(err))
	}

	if err := s.writeKeyFile(key); err != nil {
		return "", err
	}
	s.logger.Info("created master key file", zap.String("path", s.cfg.KeyFile))
	return key, nil
}

func (s *KeySource) keyringGet() (string, error) {
	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := keyring.Get(s.cfg.KeyringService, s.cfg.KeyringAccount)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-time.After(s.cfg.KeyringTimeout):
		return "", fmt.Errorf("keyring get timed out after %s", s.cfg.KeyringTimeout)
	}
}

func (s *KeySource) keyringSet(key string) error {
	done := make(chan error, 1)
	go func() {
		done <- keyring.Set(s.cfg.KeyringService, s.cfg.KeyringAccount, key)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(s.cfg.KeyringTimeout):
		return fmt.Errorf("keyring set timed out after %s", s.cfg.KeyringTimeout)
	}
}

func (s *KeySource) readKeyFile() (string, error) {
	if s.cfg.KeyFile == "" {
		return "", fmt.Errorf("no key file configured: %w", os.ErrNotExist)
	}
	data, err := os.ReadFile(s.cfg.KeyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", s.cfg.KeyFile)
	}
	return key, nil
}

func (s *KeySource) writeKeyFile(key string) error {
	if s.cfg.KeyFile == "" {
		return errors.New("no key file configured and keyring unavailable")
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.KeyFile), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(s.cfg.KeyFile, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}
