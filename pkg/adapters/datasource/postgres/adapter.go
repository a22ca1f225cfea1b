// Package postgres provides the PostgreSQL adapter, built on a single pgx connection.
package postgres

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
)

// Adapter provides PostgreSQL connectivity over one *pgx.Conn.
// pgx.Conn is not safe for concurrent use, so statements are serialized.
type Adapter struct {
	*datasource.StatusTracker

	desc   datasource.ConnectionDescriptor
	logger *zap.Logger

	mu           sync.Mutex // guards conn and cancelHandle
	conn         *pgx.Conn
	handleCtx    context.Context
	cancelHandle context.CancelFunc

	queryMu sync.Mutex
}

// NewAdapter creates a PostgreSQL adapter. It does not connect.
func NewAdapter(desc datasource.ConnectionDescriptor, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		StatusTracker: datasource.NewStatusTracker(desc.ID),
		desc:          desc,
		logger:        logger,
	}
}

func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.desc.Validate(); err != nil {
		a.SetError(err)
		return err
	}
	a.SetConnecting()

	connStr := buildConnectionString(a.desc)
	a.logger.Debug("opening connection", zap.String("dsn", logging.SanitizeConnectionString(connStr)))
	cfg, err := buildConnConfig(a.desc)
	if err != nil {
		a.SetError(err)
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, a.desc.ConnectTimeout())
	defer cancel()
	conn, err := pgx.ConnectConfig(dialCtx, cfg)
	if err != nil {
		a.SetError(err)
		a.logger.Debug("failed to reach server",
			zap.String("dsn", logging.SanitizeConnectionString(connStr)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return err
	}

	handleCtx, cancelHandle := context.WithCancel(context.Background())
	a.mu.Lock()
	prev, prevCancel := a.conn, a.cancelHandle
	a.conn, a.handleCtx, a.cancelHandle = conn, handleCtx, cancelHandle
	a.mu.Unlock()
	if prev != nil {
		prevCancel()
		_ = prev.PgConn().Conn().Close()
	}

	a.SetConnected()
	a.logger.Debug("connected",
		zap.String("host", a.desc.Host),
		zap.Int("port", a.desc.Port),
		zap.String("database", a.desc.Database),
	)
	return nil
}

// Disconnect aborts any running statement, then closes the connection
// gracefully. Safe to call when already disconnected.
func (a *Adapter) Disconnect(ctx context.Context) error {
	conn, cancel := a.detach()
	if conn == nil {
		a.SetDisconnected()
		return nil
	}
	cancel()

	a.queryMu.Lock()
	defer a.queryMu.Unlock()
	if err := conn.Close(ctx); err != nil {
		a.SetError(err)
		return err
	}
	a.SetDisconnected()
	return nil
}

// CancelQuery destroys the connection by closing its socket. Any statement
// in flight fails immediately.
func (a *Adapter) CancelQuery(ctx context.Context) error {
	conn, cancel := a.detach()
	if conn != nil {
		cancel()
		if err := conn.PgConn().Conn().Close(); err != nil {
			a.logger.Debug("error closing cancelled connection", zap.String("error", logging.SanitizeError(err)))
		}
	}
	a.SetDisconnected()
	return nil
}

// ExecuteQuery runs sql with $n placeholders.
func (a *Adapter) ExecuteQuery(ctx context.Context, sql string, params ...any) (*datasource.QueryResult, error) {
	a.queryMu.Lock()
	defer a.queryMu.Unlock()

	conn, qctx, release, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	rows, err := conn.Query(qctx, sql, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	fields := make([]datasource.FieldInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		fields[i] = datasource.FieldInfo{
			Name: fd.Name,
			Type: strconv.FormatUint(uint64(fd.DataTypeOID), 10),
		}
		if fd.DataTypeSize > 0 {
			size := int64(fd.DataTypeSize)
			fields[i].Length = &size
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &datasource.QueryResult{
		Rows:          resultRows,
		Fields:        fields,
		RowCount:      len(resultRows),
		ExecutionTime: time.Since(start).Milliseconds(),
	}
	if len(fieldDescs) == 0 {
		affected := rows.CommandTag().RowsAffected()
		result.AffectedRows = &affected
	}
	return result, nil
}

func (a *Adapter) GetSchema(ctx context.Context) (*datasource.DatabaseSchema, error) {
	a.queryMu.Lock()
	defer a.queryMu.Unlock()

	conn, qctx, release, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return newSchemaLoader(conn, a.logger).load(qctx)
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
	hasConn := a.conn != nil
	a.mu.Unlock()
	return hasConn && a.State() == datasource.StateConnected
}

func (a *Adapter) GetConnectionStatus() datasource.ConnectionStatus {
	return a.Status()
}

func (a *Adapter) GetConnectionConfig() datasource.ConnectionDescriptor {
	return a.desc.Redacted()
}

func (a *Adapter) acquire(ctx context.Context) (*pgx.Conn, context.Context, func(), error) {
	a.mu.Lock()
	conn, handleCtx := a.conn, a.handleCtx
	a.mu.Unlock()

	if conn == nil || a.State() != datasource.StateConnected {
		return nil, nil, nil, datasource.ErrNotConnected
	}

	qctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(handleCtx, cancel)
	return conn, qctx, func() {
		stop()
		cancel()
	}, nil
}

func (a *Adapter) detach() (*pgx.Conn, context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	conn, cancel := a.conn, a.cancelHandle
	a.conn, a.handleCtx, a.cancelHandle = nil, nil, nil
	return conn, cancel
}

// normalizeValue converts driver values that do not serialize well.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}

var (
	_ datasource.Adapter         = (*Adapter)(nil)
	_ datasource.ErrorClassifier = (*Adapter)(nil)
)
