package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/store"
)

// ConnectionManager is the subset of *datasource.ConnectionManager the
// service drives.
type ConnectionManager interface {
	Connect(ctx context.Context, desc datasource.ConnectionDescriptor) (datasource.ConnectionStatus, error)
	Disconnect(ctx context.Context, id string) error
	ExecuteQuery(ctx context.Context, id, sql string, params []any, timeout time.Duration) (*datasource.QueryResult, error)
	CancelQuery(ctx context.Context, id string) error
	GetSchema(ctx context.Context, id string) (*datasource.DatabaseSchema, error)
	TestConnection(ctx context.Context, desc datasource.ConnectionDescriptor) bool
	GetConnectionStatus(id string) (datasource.ConnectionStatus, bool)
	GetAllConnectionStatuses() map[string]datasource.ConnectionStatus
	ActiveConnections() []datasource.ConnectionDescriptor
	GetStats() datasource.ConnectionStats
	Factory() datasource.AdapterFactory
}

var _ ConnectionManager = (*datasource.ConnectionManager)(nil)

// ConnectionService defines saved-connection and live-session operations.
// Descriptors returned by List, Get, Create and Update never carry a password.
type ConnectionService interface {
	List(ctx context.Context) ([]datasource.ConnectionDescriptor, error)
	Get(ctx context.Context, id string) (*datasource.ConnectionDescriptor, error)

	// Create validates and saves a new connection.
	Create(ctx context.Context, desc datasource.ConnectionDescriptor) (*datasource.ConnectionDescriptor, error)

	// Update replaces a saved connection. An empty password keeps the stored
	// one. A live session for id is closed so the next connect uses the new
	// settings.
	Update(ctx context.Context, id string, desc datasource.ConnectionDescriptor) (*datasource.ConnectionDescriptor, error)

	// Delete closes any live session, then removes the saved connection.
	Delete(ctx context.Context, id string) error

	// Test dials desc without registering it. When desc.ID names a saved
	// connection and desc.Password is empty, the stored password is used.
	Test(ctx context.Context, desc datasource.ConnectionDescriptor) (bool, error)

	// Connect opens a session for a saved connection.
	Connect(ctx context.Context, id string) (datasource.ConnectionStatus, error)
	Disconnect(ctx context.Context, id string) error
	ExecuteQuery(ctx context.Context, id, sql string, params []any, timeout time.Duration) (*datasource.QueryResult, error)
	CancelQuery(ctx context.Context, id string) error
	GetSchema(ctx context.Context, id string) (*datasource.DatabaseSchema, error)

	Status(id string) (datasource.ConnectionStatus, bool)
	AllStatuses() map[string]datasource.ConnectionStatus

	// Sessions lists the live connections without passwords.
	Sessions() []datasource.ConnectionDescriptor
	Stats() datasource.ConnectionStats
	Adapters() []datasource.AdapterInfo
}

type connectionService struct {
	store   store.ConnectionStore
	manager ConnectionManager
	logger  *zap.Logger
}

// NewConnectionService creates a ConnectionService.
func NewConnectionService(st store.ConnectionStore, manager ConnectionManager, logger *zap.Logger) ConnectionService {
	return &connectionService{
		store:   st,
		manager: manager,
		logger:  logger.Named("connections"),
	}
}

func (s *connectionService) List(ctx context.Context) ([]datasource.ConnectionDescriptor, error) {
	all, err := s.store.LoadAllConnections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i] = all[i].Redacted()
	}
	return all, nil
}

func (s *connectionService) Get(ctx context.Context, id string) (*datasource.ConnectionDescriptor, error) {
	desc, err := s.store.LoadConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	redacted := desc.Redacted()
	return &redacted, nil
}

func (s *connectionService) Create(ctx context.Context, desc datasource.ConnectionDescriptor) (*datasource.ConnectionDescriptor, error) {
	if err := s.validate(desc); err != nil {
		return nil, err
	}

	if desc.ID != "" {
		exists, err := s.store.ConnectionExists(ctx, desc.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("connection %s already exists: %w", desc.ID, apperrors.ErrConflict)
		}
	}

	saved, err := s.store.SaveConnection(ctx, desc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created connection",
		zap.String("connection_id", saved.ID),
		zap.String("name", saved.Name),
		zap.String("engine", string(saved.Type)),
	)

	redacted := saved.Redacted()
	return &redacted, nil
}

func (s *connectionService) Update(ctx context.Context, id string, desc datasource.ConnectionDescriptor) (*datasource.ConnectionDescriptor, error) {
	existing, err := s.store.LoadConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	desc.ID = id
	if desc.Password == "" {
		desc.Password = existing.Password
	}
	if err := s.validate(desc); err != nil {
		return nil, err
	}

	ok, err := s.store.UpdateConnection(ctx, desc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	s.closeSession(ctx, id, "connection updated")

	updated, err := s.store.LoadConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	redacted := updated.Redacted()
	return &redacted, nil
}

func (s *connectionService) Delete(ctx context.Context, id string) error {
	s.closeSession(ctx, id, "connection deleted")

	ok, err := s.store.DeleteConnection(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotFound
	}

	s.logger.Info("Deleted connection", zap.String("connection_id", id))
	return nil
}

func (s *connectionService) Test(ctx context.Context, desc datasource.ConnectionDescriptor) (bool, error) {
	if desc.ID != "" && desc.Password == "" {
		saved, err := s.store.LoadConnection(ctx, desc.ID)
		switch {
		case err == nil:
			desc.Password = saved.Password
		case !errors.Is(err, apperrors.ErrNotFound):
			return false, err
		}
	}

	if err := s.validate(desc); err != nil {
		return false, err
	}
	return s.manager.TestConnection(ctx, desc), nil
}

func (s *connectionService) Connect(ctx context.Context, id string) (datasource.ConnectionStatus, error) {
	desc, err := s.store.LoadConnection(ctx, id)
	if err != nil {
		return datasource.ConnectionStatus{}, err
	}
	return s.manager.Connect(ctx, *desc)
}

func (s *connectionService) Disconnect(ctx context.Context, id string) error {
	return s.manager.Disconnect(ctx, id)
}

func (s *connectionService) ExecuteQuery(ctx context.Context, id, sql string, params []any, timeout time.Duration) (*datasource.QueryResult, error) {
	return s.manager.ExecuteQuery(ctx, id, sql, params, timeout)
}

func (s *connectionService) CancelQuery(ctx context.Context, id string) error {
	return s.manager.CancelQuery(ctx, id)
}

func (s *connectionService) GetSchema(ctx context.Context, id string) (*datasource.DatabaseSchema, error) {
	return s.manager.GetSchema(ctx, id)
}

func (s *connectionService) Status(id string) (datasource.ConnectionStatus, bool) {
	return s.manager.GetConnectionStatus(id)
}

func (s *connectionService) AllStatuses() map[string]datasource.ConnectionStatus {
	return s.manager.GetAllConnectionStatuses()
}

func (s *connectionService) Sessions() []datasource.ConnectionDescriptor {
	return s.manager.ActiveConnections()
}

func (s *connectionService) Stats() datasource.ConnectionStats {
	return s.manager.GetStats()
}

func (s *connectionService) Adapters() []datasource.AdapterInfo {
	return s.manager.Factory().ListTypes()
}

// validate checks required fields and that an adapter for desc.Type is
// compiled in.
func (s *connectionService) validate(desc datasource.ConnectionDescriptor) error {
	if desc.Type == "" {
		return &datasource.ValidationError{Field: "Type", Message: "Database type is required"}
	}
	if err := desc.Validate(); err != nil {
		return err
	}
	for _, info := range s.manager.Factory().ListTypes() {
		if info.Type == desc.Type {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", datasource.ErrUnsupportedEngine, desc.Type)
}

// closeSession disconnects id if the manager has it registered. Failures are
// logged only; the caller's operation goes ahead regardless.
func (s *connectionService) closeSession(ctx context.Context, id, reason string) {
	err := s.manager.Disconnect(ctx, id)
	if err == nil || errors.Is(err, apperrors.ErrNotFound) {
		return
	}
	s.logger.Warn("Failed to close session",
		zap.String("connection_id", id),
		zap.String("reason", reason),
		zap.String("error", logging.SanitizeError(err)),
	)
}
