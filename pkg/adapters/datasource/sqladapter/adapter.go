// Package sqladapter implements datasource.Adapter on top of database/sql.
// Engine packages supply a Dialect for the driver-specific parts.
package sqladapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
)

// Dialect supplies the driver-specific parts of an adapter. A Dialect that
// also implements datasource.ErrorClassifier classifies its driver's errors.
type Dialect interface {
	// DriverName is the name the driver registered with database/sql.
	DriverName() string
	// DSN builds the driver connection string for desc.
	DSN(desc datasource.ConnectionDescriptor) (string, error)
	// LoadSchema introspects the connected database.
	LoadSchema(ctx context.Context, db *sql.DB, desc datasource.ConnectionDescriptor) (*datasource.DatabaseSchema, error)
}

// Opener opens a *sql.DB. Tests substitute sqlmock.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Adapter provides database connectivity through one database/sql handle
// limited to a single open connection.
type Adapter struct {
	*datasource.StatusTracker

	desc    datasource.ConnectionDescriptor
	dialect Dialect
	open    Opener
	logger  *zap.Logger

	mu           sync.Mutex // guards db and cancelHandle
	db           *sql.DB
	handleCtx    context.Context
	cancelHandle context.CancelFunc

	queryMu sync.Mutex // one statement at a time on the handle
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithOpener replaces sql.Open.
func WithOpener(open Opener) Option {
	return func(a *Adapter) { a.open = open }
}

// New creates an adapter. It does not connect.
func New(desc datasource.ConnectionDescriptor, dialect Dialect, logger *zap.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		StatusTracker: datasource.NewStatusTracker(desc.ID),
		desc:          desc,
		dialect:       dialect,
		open:          sql.Open,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect validates the descriptor and pings the server within the
// descriptor's connect timeout.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.desc.Validate(); err != nil {
		a.SetError(err)
		return err
	}
	a.SetConnecting()

	dsn, err := a.dialect.DSN(a.desc)
	if err != nil {
		a.SetError(err)
		return err
	}

	a.logger.Debug("opening connection",
		zap.String("driver", a.dialect.DriverName()),
		zap.String("dsn", logging.SanitizeConnectionString(dsn)),
	)
	db, err := a.open(a.dialect.DriverName(), dsn)
	if err != nil {
		a.SetError(err)
		a.logger.Debug("failed to open connection",
			zap.String("dsn", logging.SanitizeConnectionString(dsn)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return fmt.Errorf("failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	dialCtx, cancel := context.WithTimeout(ctx, a.desc.ConnectTimeout())
	defer cancel()
	if err := db.PingContext(dialCtx); err != nil {
		_ = db.Close()
		a.SetError(err)
		a.logger.Debug("failed to reach server",
			zap.String("dsn", logging.SanitizeConnectionString(dsn)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return err
	}

	handleCtx, cancelHandle := context.WithCancel(context.Background())
	a.mu.Lock()
	prev, prevCancel := a.db, a.cancelHandle
	a.db, a.handleCtx, a.cancelHandle = db, handleCtx, cancelHandle
	a.mu.Unlock()
	if prev != nil {
		prevCancel()
		_ = prev.Close()
	}

	a.SetConnected()
	a.logger.Debug("connected",
		zap.String("host", a.desc.Host),
		zap.Int("port", a.desc.Port),
		zap.String("database", a.desc.Database),
	)
	return nil
}

// Disconnect closes the handle. Safe to call when already disconnected.
func (a *Adapter) Disconnect(ctx context.Context) error {
	db, cancel := a.detach()
	if db == nil {
		a.SetDisconnected()
		return nil
	}
	cancel()
	if err := db.Close(); err != nil {
		a.SetError(err)
		return err
	}
	a.SetDisconnected()
	return nil
}

// CancelQuery destroys the handle: the handle context is cancelled first so
// the driver drops the network connection under any running statement.
func (a *Adapter) CancelQuery(ctx context.Context) error {
	db, cancel := a.detach()
	if db != nil {
		cancel()
		if err := db.Close(); err != nil {
			a.logger.Warn("error closing cancelled connection", zap.String("error", logging.SanitizeError(err)))
		}
	}
	a.SetDisconnected()
	return nil
}

func (a *Adapter) ExecuteQuery(ctx context.Context, query string, params ...any) (*datasource.QueryResult, error) {
	a.queryMu.Lock()
	defer a.queryMu.Unlock()

	db, qctx, release, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	if IsRowReturning(query) {
		rows, err := db.QueryContext(qctx, query, params...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		data, fields, err := ScanRows(rows)
		if err != nil {
			return nil, err
		}
		return &datasource.QueryResult{
			Rows:          data,
			Fields:        fields,
			RowCount:      len(data),
			ExecutionTime: time.Since(start).Milliseconds(),
		}, nil
	}

	res, err := db.ExecContext(qctx, query, params...)
	if err != nil {
		return nil, err
	}
	result := &datasource.QueryResult{
		Rows:          []map[string]any{},
		Fields:        []datasource.FieldInfo{},
		ExecutionTime: time.Since(start).Milliseconds(),
	}
	if n, err := res.RowsAffected(); err == nil {
		result.AffectedRows = &n
	}
	return result, nil
}

func (a *Adapter) GetSchema(ctx context.Context) (*datasource.DatabaseSchema, error) {
	a.queryMu.Lock()
	defer a.queryMu.Unlock()

	db, qctx, release, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return a.dialect.LoadSchema(qctx, db, a.desc)
}

// TestConnection connects if needed and runs SELECT 1.
func (a *Adapter) TestConnection(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic during connection test", zap.Any("panic", r))
			ok = false
		}
	}()

	if !a.IsConnected() {
		if err := a.Connect(ctx); err != nil {
			a.logger.Debug("connection test failed", zap.String("error", logging.SanitizeError(err)))
			return false
		}
	}
	if _, err := a.ExecuteQuery(ctx, "SELECT 1"); err != nil {
		a.logger.Debug("connection test query failed", zap.String("error", logging.SanitizeError(err)))
		return false
	}
	return true
}

func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	hasDB := a.db != nil
	a.mu.Unlock()
	return hasDB && a.State() == datasource.StateConnected
}

func (a *Adapter) GetConnectionStatus() datasource.ConnectionStatus {
	return a.Status()
}

func (a *Adapter) GetConnectionConfig() datasource.ConnectionDescriptor {
	return a.desc.Redacted()
}

// ClassifyError reports dropped handles as network errors and defers the
// rest to the dialect.
func (a *Adapter) ClassifyError(err error) (apperrors.Kind, bool) {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperrors.KindNetworkError, true
	}
	if c, ok := a.dialect.(datasource.ErrorClassifier); ok {
		return c.ClassifyError(err)
	}
	return "", false
}

// acquire returns the live handle and a context that is cancelled when
// either ctx ends or the handle is destroyed.
func (a *Adapter) acquire(ctx context.Context) (*sql.DB, context.Context, func(), error) {
	a.mu.Lock()
	db, handleCtx := a.db, a.handleCtx
	a.mu.Unlock()

	if db == nil || a.State() != datasource.StateConnected {
		return nil, nil, nil, datasource.ErrNotConnected
	}

	qctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(handleCtx, cancel)
	return db, qctx, func() {
		stop()
		cancel()
	}, nil
}

func (a *Adapter) detach() (*sql.DB, context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	db, cancel := a.db, a.cancelHandle
	a.db, a.handleCtx, a.cancelHandle = nil, nil, nil
	return db, cancel
}

var (
	_ datasource.Adapter         = (*Adapter)(nil)
	_ datasource.ErrorClassifier = (*Adapter)(nil)
)
