// Package store persists saved connections to a JSON file in the data
// directory. Passwords are encrypted at rest; everything else is plaintext.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/crypto"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
)

// ConnectionStore defines saved-connection persistence.
// Descriptors go in and come out with plaintext passwords.
type ConnectionStore interface {
	// SaveConnection inserts or replaces desc. An empty ID gets a new UUID.
	SaveConnection(ctx context.Context, desc datasource.ConnectionDescriptor) (*datasource.ConnectionDescriptor, error)

	// LoadConnection returns apperrors.ErrNotFound when id is unknown.
	LoadConnection(ctx context.Context, id string) (*datasource.ConnectionDescriptor, error)

	LoadAllConnections(ctx context.Context) ([]datasource.ConnectionDescriptor, error)

	// UpdateConnection replaces an existing entry, keeping its CreatedAt.
	// It reports false when id is unknown.
	UpdateConnection(ctx context.Context, desc datasource.ConnectionDescriptor) (bool, error)

	// DeleteConnection reports false when id is unknown.
	DeleteConnection(ctx context.Context, id string) (bool, error)

	ConnectionExists(ctx context.Context, id string) (bool, error)

	DataPath() string
	ConnectionsFilePath() string

	// Close rejects every later call.
	Close(ctx context.Context) error
}

// storedConnection is the on-disk form of a descriptor.
type storedConnection struct {
	ID                    string                `json:"id"`
	Name                  string                `json:"name"`
	Type                  datasource.EngineKind `json:"type"`
	Host                  string                `json:"host"`
	Port                  int                   `json:"port"`
	Database              string                `json:"database"`
	Username              string                `json:"username"`
	EncryptedPassword     string                `json:"encryptedPassword"`
	SSL                   bool                  `json:"ssl"`
	ConnectionTimeoutMs   int64                 `json:"connectionTimeoutMs,omitempty"`
	QueryTimeoutMs        int64                 `json:"queryTimeoutMs,omitempty"`
	IdleTimeoutMs         int64                 `json:"idleTimeoutMs,omitempty"`
	HealthCheckIntervalMs int64                 `json:"healthCheckIntervalMs,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

// FileStore implements ConnectionStore on a single JSON file.
type FileStore struct {
	mu        sync.Mutex
	path      string
	encryptor *crypto.CredentialEncryptor
	logger    *zap.Logger
	now       func() time.Time
	closed    bool
}

var _ ConnectionStore = (*FileStore)(nil)

// NewFileStore creates the parent directory of path if needed.
func NewFileStore(path string, encryptor *crypto.CredentialEncryptor, logger *zap.Logger) (*FileStore, error) {
	if encryptor == nil {
		return nil, apperrors.New(apperrors.KindEncryptionError, "credential encryptor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageError, "failed to create data directory", err)
	}
	return &FileStore{
		path:      path,
		encryptor: encryptor,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *FileStore) DataPath() string {
	return filepath.Dir(s.path)
}

func (s *FileStore) ConnectionsFilePath() string {
	return s.path
}

func (s *FileStore) SaveConnection(ctx context.Context, desc datasource.ConnectionDescriptor) (*datasource.ConnectionDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return nil, err
	}

	if desc.ID == "" {
		desc.ID = uuid.NewString()
	}
	now := s.now()
	desc.UpdatedAt = now
	desc.CreatedAt = now

	idx := indexOf(entries, desc.ID)
	if idx >= 0 {
		desc.CreatedAt = entries[idx].CreatedAt
	}

	stored, err := s.encode(desc)
	if err != nil {
		return nil, err
	}
	if idx >= 0 {
		entries[idx] = stored
	} else {
		entries = append(entries, stored)
	}

	if err := s.writeLocked(entries); err != nil {
		return nil, err
	}

	s.logger.Info("saved connection",
		zap.String("connection_id", desc.ID),
		zap.String("name", desc.Name),
		zap.String("engine", string(desc.Type)),
	)
	return &desc, nil
}

func (s *FileStore) LoadConnection(ctx context.Context, id string) (*datasource.ConnectionDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	idx := indexOf(entries, id)
	if idx < 0 {
		return nil, apperrors.ErrNotFound
	}
	desc, err := s.decode(entries[idx])
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

func (s *FileStore) LoadAllConnections(ctx context.Context) ([]datasource.ConnectionDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	result := make([]datasource.ConnectionDescriptor, 0, len(entries))
	for _, e := range entries {
		desc, err := s.decode(e)
		if err != nil {
			return nil, err
		}
		result = append(result, desc)
	}
	return result, nil
}

func (s *FileStore) UpdateConnection(ctx context.Context, desc datasource.ConnectionDescriptor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return false, err
	}
	idx := indexOf(entries, desc.ID)
	if idx < 0 {
		return false, nil
	}

	desc.CreatedAt = entries[idx].CreatedAt
	desc.UpdatedAt = s.now()
	stored, err := s.encode(desc)
	if err != nil {
		return false, err
	}
	entries[idx] = stored

	if err := s.writeLocked(entries); err != nil {
		return false, err
	}
	s.logger.Info("updated connection", zap.String("connection_id", desc.ID))
	return true, nil
}

func (s *FileStore) DeleteConnection(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return false, err
	}
	idx := indexOf(entries, id)
	if idx < 0 {
		return false, nil
	}
	entries = append(entries[:idx], entries[idx+1:]...)

	if err := s.writeLocked(entries); err != nil {
		return false, err
	}
	s.logger.Info("deleted connection", zap.String("connection_id", id))
	return true, nil
}

func (s *FileStore) ConnectionExists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return false, err
	}
	return indexOf(entries, id) >= 0, nil
}

func (s *FileStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// readLocked returns an empty list when the file does not exist yet.
func (s *FileStore) readLocked() ([]storedConnection, error) {
	if s.closed {
		return nil, apperrors.New(apperrors.KindStorageError, "connection store is closed")
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []storedConnection{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageError, "failed to read connections file", err)
	}
	if len(data) == 0 {
		return []storedConnection{}, nil
	}

	var entries []storedConnection
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageError, "failed to parse connections file", err)
	}
	return entries, nil
}

// writeLocked replaces the file atomically: temp file, fsync, rename.
func (s *FileStore) writeLocked(entries []storedConnection) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorageError, "failed to encode connections", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".connections-*.json")
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorageError, "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return apperrors.Wrap(apperrors.KindStorageError, "failed to set file mode", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return apperrors.Wrap(apperrors.KindStorageError, "failed to write connections file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return apperrors.Wrap(apperrors.KindStorageError, "failed to sync connections file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.KindStorageError, "failed to close connections file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		s.logger.Error("failed to replace connections file",
			zap.String("path", s.path),
			zap.String("error", logging.SanitizeError(err)),
		)
		return apperrors.Wrap(apperrors.KindStorageError, "failed to replace connections file", err)
	}
	tmpName = ""
	return nil
}

func (s *FileStore) encode(desc datasource.ConnectionDescriptor) (storedConnection, error) {
	encrypted, err := s.encryptor.Encrypt(desc.Password)
	if err != nil {
		return storedConnection{}, apperrors.Wrap(apperrors.KindEncryptionError, "failed to encrypt password", err).WithConnection(desc.ID)
	}
	return storedConnection{
		ID:                    desc.ID,
		Name:                  desc.Name,
		Type:                  desc.Type,
		Host:                  desc.Host,
		Port:                  desc.Port,
		Database:              desc.Database,
		Username:              desc.Username,
		EncryptedPassword:     encrypted,
		SSL:                   desc.SSL,
		ConnectionTimeoutMs:   desc.ConnectionTimeoutMs,
		QueryTimeoutMs:        desc.QueryTimeoutMs,
		IdleTimeoutMs:         desc.IdleTimeoutMs,
		HealthCheckIntervalMs: desc.HealthCheckIntervalMs,
		CreatedAt:             desc.CreatedAt,
		UpdatedAt:             desc.UpdatedAt,
	}, nil
}

func (s *FileStore) decode(e storedConnection) (datasource.ConnectionDescriptor, error) {
	password, err := s.encryptor.Decrypt(e.EncryptedPassword)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			err = fmt.Errorf("%w: %w", apperrors.ErrCredentialsKeyMismatch, err)
		}
		return datasource.ConnectionDescriptor{}, apperrors.Wrap(apperrors.KindEncryptionError,
			fmt.Sprintf("failed to decrypt password for connection %s", e.ID), err).WithConnection(e.ID)
	}
	return datasource.ConnectionDescriptor{
		ID:                    e.ID,
		Name:                  e.Name,
		Type:                  e.Type,
		Host:                  e.Host,
		Port:                  e.Port,
		Database:              e.Database,
		Username:              e.Username,
		Password:              password,
		SSL:                   e.SSL,
		ConnectionTimeoutMs:   e.ConnectionTimeoutMs,
		QueryTimeoutMs:        e.QueryTimeoutMs,
		IdleTimeoutMs:         e.IdleTimeoutMs,
		HealthCheckIntervalMs: e.HealthCheckIntervalMs,
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
	}, nil
}

func indexOf(entries []storedConnection, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
