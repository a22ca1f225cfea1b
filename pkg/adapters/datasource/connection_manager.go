package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/retry"
)

const (
	DefaultMaxConnections      = 10
	DefaultQueryTimeout        = 30 * time.Second
	DefaultIdleTimeout         = 5 * time.Minute
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultHealthCheckTimeout  = 5 * time.Second

	autoDisconnectTimeout = 10 * time.Second
	healthCheckQuery      = "SELECT 1"
)

// ConnectionManagerConfig holds configuration for the connection manager.
// Zero values fall back to the package defaults.
type ConnectionManagerConfig struct {
	MaxConnections      int
	QueryTimeout        time.Duration
	IdleTimeout         time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	// ConnectRetries is the number of extra attempts for transient connect failures.
	ConnectRetries int
}

// ConnectionStats contains statistics about registered connections.
type ConnectionStats struct {
	TotalConnections   int                     `json:"total_connections"`
	MaxConnections     int                     `json:"max_connections"`
	ConnectionsByType  map[EngineKind]int      `json:"connections_by_type"`
	ConnectionsByState map[ConnectionState]int `json:"connections_by_state"`
	IdleTimers         int                     `json:"idle_timers"`
	HealthChecks       int                     `json:"health_checks"`
	PendingQueries     int                     `json:"pending_queries"`
}

// ConnectionManager owns every live adapter, keyed by connection id.
// It enforces the connection ceiling, races queries against their timeouts,
// evicts idle connections and health-checks the rest.
type ConnectionManager struct {
	mu              sync.RWMutex
	connections     map[string]*managedConnection
	statuses        map[string]ConnectionStatus
	cleanupHandlers []func(ctx context.Context) error
	closed          bool

	cfg      ConnectionManagerConfig
	timers   *timerSet
	factory  AdapterFactory
	observer Observer
	retryCfg *retry.Config
	logger   *zap.Logger
}

type managedConnection struct {
	adapter  Adapter
	desc     ConnectionDescriptor
	inflight atomic.Int32
}

// Option customizes a ConnectionManager.
type Option func(*ConnectionManager)

// WithAdapterFactory replaces the registry-backed adapter factory.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(m *ConnectionManager) { m.factory = f }
}

// WithObserver installs an event observer, typically pkg/metrics.
func WithObserver(o Observer) Option {
	return func(m *ConnectionManager) { m.observer = o }
}

// WithRetryConfig sets the retry policy used by Connect.
func WithRetryConfig(cfg *retry.Config) Option {
	return func(m *ConnectionManager) { m.retryCfg = cfg }
}

// NewConnectionManager creates a connection manager with the given configuration.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger, opts ...Option) *ConnectionManager {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &ConnectionManager{
		connections: make(map[string]*managedConnection),
		statuses:    make(map[string]ConnectionStatus),
		cfg:         cfg,
		timers:      newTimerSet(),
		observer:    noopObserver{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.factory == nil {
		m.factory = NewAdapterFactory(logger)
	}
	if m.retryCfg == nil {
		if cfg.ConnectRetries > 0 {
			m.retryCfg = retry.DefaultConfig()
			m.retryCfg.MaxRetries = cfg.ConnectRetries
		} else {
			m.retryCfg = retry.NoRetry()
		}
	}
	return m
}

// Factory returns the adapter factory used by the manager.
func (m *ConnectionManager) Factory() AdapterFactory {
	return m.factory
}

// Connect creates an adapter for desc, dials it and registers it under desc.ID.
// An existing connection with the same id is torn down first and its slot
// is handed to the new adapter.
func (m *ConnectionManager) Connect(ctx context.Context, desc ConnectionDescriptor) (ConnectionStatus, error) {
	if desc.ID == "" {
		desc.ID = uuid.NewString()
	}
	id := desc.ID

	if m.isClosed() {
		return ConnectionStatus{}, managerClosed(id)
	}

	adapter, err := m.factory.NewAdapter(desc)
	if err != nil {
		m.observer.ConnectAttempt(desc.Type, err)
		return ConnectionStatus{}, err
	}
	mc := &managedConnection{adapter: adapter, desc: desc}

	// The ceiling check and the registration share one critical section so
	// concurrent connects cannot all observe a free slot.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ConnectionStatus{}, managerClosed(id)
	}
	prior := m.connections[id]
	if prior == nil && len(m.connections) >= m.cfg.MaxConnections {
		m.mu.Unlock()
		m.logger.Warn("connection limit reached",
			zap.String("connection_id", id),
			zap.Int("max_connections", m.cfg.MaxConnections),
		)
		return ConnectionStatus{}, apperrors.Wrap(apperrors.KindConnectionFailed,
			fmt.Sprintf("maximum connections limit reached (%d)", m.cfg.MaxConnections),
			apperrors.ErrConnectionLimitReached,
		).WithConnection(id)
	}
	m.connections[id] = mc
	m.statuses[id] = ConnectionStatus{ID: id, Status: StateConnecting}
	m.mu.Unlock()

	if prior != nil {
		m.logger.Debug("replacing existing connection", zap.String("connection_id", id))
		if err := m.teardown(ctx, id, prior); err != nil {
			m.logger.Warn("failed to tear down existing connection",
				zap.String("connection_id", id),
				zap.String("error", logging.SanitizeError(err)),
			)
		}
	}

	start := time.Now()
	err = retry.DoIfRetryable(ctx, m.retryCfg, func() error {
		return adapter.Connect(ctx)
	})
	m.observer.ConnectAttempt(desc.Type, err)

	if err != nil {
		m.mu.Lock()
		if m.connections[id] == mc {
			delete(m.connections, id)
			m.statuses[id] = ConnectionStatus{ID: id, Status: StateError, Error: err.Error()}
		}
		active := len(m.connections)
		m.mu.Unlock()
		m.observer.ConnectionsChanged(active)

		m.logger.Error("failed to connect",
			zap.String("connection_id", id),
			zap.String("engine", string(desc.Type)),
			zap.String("host", desc.Host),
			zap.String("error", logging.SanitizeError(err)),
		)
		return ConnectionStatus{}, apperrors.Wrap(apperrors.KindConnectionFailed, err.Error(), err).WithConnection(id)
	}

	m.mu.Lock()
	if m.connections[id] != mc || m.closed {
		m.mu.Unlock()
		if derr := adapter.Disconnect(ctx); derr != nil {
			m.logger.Warn("failed to close abandoned connection",
				zap.String("connection_id", id),
				zap.String("error", logging.SanitizeError(derr)),
			)
		}
		return ConnectionStatus{}, apperrors.Newf(apperrors.KindConnectionFailed,
			"Connection %s was closed while connecting", id).WithConnection(id)
	}
	status := adapter.GetConnectionStatus()
	m.statuses[id] = status
	active := len(m.connections)
	m.timers.startIdle(id, desc.IdleTimeout(m.cfg.IdleTimeout), func() {
		m.autoDisconnect(id, adapter, "idle timeout")
	})
	m.timers.startHealth(id, desc.HealthCheckInterval(m.cfg.HealthCheckInterval), func() {
		m.healthCheck(id, mc)
	})
	m.mu.Unlock()
	m.observer.ConnectionsChanged(active)

	m.logger.Info("connected",
		zap.String("connection_id", id),
		zap.String("engine", string(desc.Type)),
		zap.String("host", desc.Host),
		zap.String("database", desc.Database),
		zap.Duration("elapsed", time.Since(start)),
	)
	return status, nil
}

// Disconnect tears down the connection registered under id.
func (m *ConnectionManager) Disconnect(ctx context.Context, id string) error {
	return m.disconnect(ctx, id, nil)
}

// disconnect removes id. When expected is non-nil the call only acts if id
// is still served by that adapter, so stale timer callbacks cannot tear down
// a replacement connection.
func (m *ConnectionManager) disconnect(ctx context.Context, id string, expected Adapter) error {
	m.mu.Lock()
	mc := m.connections[id]
	if mc == nil || (expected != nil && mc.adapter != expected) {
		m.mu.Unlock()
		if expected != nil {
			return nil
		}
		return notFound(id)
	}
	delete(m.connections, id)
	active := len(m.connections)
	m.mu.Unlock()
	m.observer.ConnectionsChanged(active)

	if err := m.teardown(ctx, id, mc); err != nil {
		m.logger.Error("failed to disconnect",
			zap.String("connection_id", id),
			zap.String("error", logging.SanitizeError(err)),
		)
		return apperrors.Wrap(apperrors.KindConnectionFailed, err.Error(), err).WithConnection(id)
	}

	m.logger.Info("disconnected", zap.String("connection_id", id))
	return nil
}

// teardown closes an adapter that is no longer registered under id: any
// running query is cancelled, the id's timers are stopped and the final
// status is recorded unless a newer connection already owns id.
func (m *ConnectionManager) teardown(ctx context.Context, id string, mc *managedConnection) error {
	if mc.inflight.Load() > 0 {
		m.timers.cancelQuery(id)
		if err := mc.adapter.CancelQuery(ctx); err != nil {
			m.logger.Warn("failed to cancel query before disconnect",
				zap.String("connection_id", id),
				zap.String("error", logging.SanitizeError(err)),
			)
		}
	}
	m.timers.clear(id)

	err := mc.adapter.Disconnect(ctx)
	status := mc.adapter.GetConnectionStatus()
	if err != nil {
		status.Status = StateError
		status.Error = err.Error()
	}

	m.mu.Lock()
	if current := m.connections[id]; current == nil || current == mc {
		m.statuses[id] = status
	}
	m.mu.Unlock()
	return err
}

// ExecuteQuery runs sql on connection id. A timeout <= 0 uses the
// descriptor's query timeout, else the manager default. On timeout the
// connection handle is destroyed and must be reconnected.
func (m *ConnectionManager) ExecuteQuery(ctx context.Context, id, sql string, params []any, timeout time.Duration) (*QueryResult, error) {
	mc, err := m.activeConnection(id)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = mc.desc.QueryTimeout(m.cfg.QueryTimeout)
	}

	type outcome struct {
		result *QueryResult
		err    error
	}

	qt := m.timers.startQuery(id, timeout)
	mc.inflight.Add(1)
	defer mc.inflight.Add(-1)

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		res, err := mc.adapter.ExecuteQuery(ctx, sql, params...)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
		m.timers.finishQuery(id, qt)

	case <-qt.fired:
		m.timers.finishQuery(id, qt)
		m.cancelAfterFailure(ctx, id, mc, "query timeout")
		m.observer.QueryCompleted(mc.desc.Type, time.Since(start), apperrors.KindTimeout)
		m.logger.Warn("query timed out",
			zap.String("connection_id", id),
			zap.Duration("timeout", timeout),
			zap.String("query", logging.SanitizeQuery(sql)),
		)
		return nil, timeoutError(id, timeout)

	case <-ctx.Done():
		m.timers.finishQuery(id, qt)
		return nil, m.contextDone(ctx, id, mc, timeout, start)
	}

	elapsed := time.Since(start)
	if out.err != nil {
		if ctx.Err() != nil {
			return nil, m.contextDone(ctx, id, mc, timeout, start)
		}
		if qt.cancelled.Load() {
			m.observer.QueryCompleted(mc.desc.Type, elapsed, apperrors.KindQueryError)
			return nil, apperrors.Wrap(apperrors.KindQueryError, "Query cancelled", out.err).WithConnection(id)
		}

		kind := classifyAdapterError(mc.adapter, out.err)
		if kind == apperrors.KindNetworkError {
			m.cancelAfterFailure(ctx, id, mc, "network error")
		}
		m.observer.QueryCompleted(mc.desc.Type, elapsed, kind)
		m.logger.Debug("query failed",
			zap.String("connection_id", id),
			zap.String("kind", string(kind)),
			zap.String("query", logging.SanitizeQuery(sql)),
			zap.String("error", logging.SanitizeError(out.err)),
		)
		return nil, apperrors.Wrap(kind, out.err.Error(), out.err).WithConnection(id)
	}

	m.timers.resetIdle(id, mc.desc.IdleTimeout(m.cfg.IdleTimeout))
	m.observer.QueryCompleted(mc.desc.Type, elapsed, "")
	return out.result, nil
}

// CancelQuery clears the pending query timeout for id and destroys the
// adapter's handle.
func (m *ConnectionManager) CancelQuery(ctx context.Context, id string) error {
	m.mu.RLock()
	mc := m.connections[id]
	m.mu.RUnlock()
	if mc == nil {
		return notFound(id)
	}

	m.timers.cancelQuery(id)
	err := mc.adapter.CancelQuery(ctx)
	m.recordStatus(id, mc)
	if err != nil {
		return apperrors.Wrap(apperrors.KindQueryError, err.Error(), err).WithConnection(id)
	}
	m.logger.Info("query cancelled", zap.String("connection_id", id))
	return nil
}

// GetSchema introspects the database behind connection id.
func (m *ConnectionManager) GetSchema(ctx context.Context, id string) (*DatabaseSchema, error) {
	mc, err := m.activeConnection(id)
	if err != nil {
		return nil, err
	}

	schema, err := mc.adapter.GetSchema(ctx)
	if err != nil {
		m.logger.Error("failed to load schema",
			zap.String("connection_id", id),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, apperrors.Wrap(apperrors.KindQueryError, err.Error(), err).WithConnection(id)
	}
	m.timers.resetIdle(id, mc.desc.IdleTimeout(m.cfg.IdleTimeout))
	return schema, nil
}

// TestConnection dials desc with a throwaway adapter. It never returns an
// error; any failure, including a panic inside the adapter, reports false.
func (m *ConnectionManager) TestConnection(ctx context.Context, desc ConnectionDescriptor) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic while testing connection", zap.Any("panic", r))
			ok = false
		}
	}()

	adapter, err := m.factory.NewAdapter(desc)
	if err != nil {
		m.logger.Warn("cannot test connection", zap.String("error", err.Error()))
		return false
	}
	defer func() {
		if err := adapter.Disconnect(ctx); err != nil {
			m.logger.Debug("failed to close test connection", zap.String("error", logging.SanitizeError(err)))
		}
	}()

	return adapter.TestConnection(ctx)
}

// GetConnectionStatus returns the live status for a registered id, or the
// last recorded status for one that has been removed.
func (m *ConnectionManager) GetConnectionStatus(id string) (ConnectionStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if mc, ok := m.connections[id]; ok {
		return mc.adapter.GetConnectionStatus(), true
	}
	status, ok := m.statuses[id]
	return status.Clone(), ok
}

// GetAllConnectionStatuses returns a copy of every known status.
func (m *ConnectionManager) GetAllConnectionStatuses() map[string]ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]ConnectionStatus, len(m.statuses))
	for id, status := range m.statuses {
		result[id] = status.Clone()
	}
	for id, mc := range m.connections {
		result[id] = mc.adapter.GetConnectionStatus()
	}
	return result
}

// ActiveConnections returns the descriptor of every registered connection as
// its adapter reports it, password stripped, sorted by id.
func (m *ConnectionManager) ActiveConnections() []ConnectionDescriptor {
	m.mu.RLock()
	result := make([]ConnectionDescriptor, 0, len(m.connections))
	for _, mc := range m.connections {
		result = append(result, mc.adapter.GetConnectionConfig())
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// GetActiveConnectionCount returns the number of registered connections.
func (m *ConnectionManager) GetActiveConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// IsConnectionActive reports whether id is registered and its adapter is connected.
func (m *ConnectionManager) IsConnectionActive(id string) bool {
	m.mu.RLock()
	mc := m.connections[id]
	m.mu.RUnlock()
	return mc != nil && mc.adapter.IsConnected()
}

// AddCleanupHandler registers fn to run, in registration order, at the end
// of every Cleanup.
func (m *ConnectionManager) AddCleanupHandler(fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupHandlers = append(m.cleanupHandlers, fn)
}

// GetStats returns statistics about registered connections and timers.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	stats := ConnectionStats{
		TotalConnections:   len(m.connections),
		MaxConnections:     m.cfg.MaxConnections,
		ConnectionsByType:  make(map[EngineKind]int),
		ConnectionsByState: make(map[ConnectionState]int),
	}
	for _, mc := range m.connections {
		stats.ConnectionsByType[mc.desc.Type]++
		stats.ConnectionsByState[mc.adapter.GetConnectionStatus().Status]++
	}
	m.mu.RUnlock()

	stats.IdleTimers, stats.HealthChecks, stats.PendingQueries = m.timers.counts()
	return stats
}

// Cleanup disconnects every connection concurrently, clears all timers and
// the registry, then runs the cleanup handlers. Errors are logged, never
// returned. It is safe to call more than once, and the manager stays usable.
func (m *ConnectionManager) Cleanup(ctx context.Context) {
	// Swap the registry first: a Connect finishing from here on sees that
	// its entry is gone and closes its own adapter.
	m.mu.Lock()
	snapshot := m.connections
	m.connections = make(map[string]*managedConnection)
	handlers := make([]func(ctx context.Context) error, len(m.cleanupHandlers))
	copy(handlers, m.cleanupHandlers)
	m.mu.Unlock()
	m.observer.ConnectionsChanged(0)

	var wg sync.WaitGroup
	for id, mc := range snapshot {
		wg.Add(1)
		go func(id string, mc *managedConnection) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("panic while disconnecting",
						zap.String("connection_id", id),
						zap.Any("panic", r),
					)
				}
			}()
			if err := m.teardown(ctx, id, mc); err != nil {
				m.logger.Warn("cleanup: disconnect failed",
					zap.String("connection_id", id),
					zap.String("error", logging.SanitizeError(err)),
				)
			}
		}(id, mc)
	}
	wg.Wait()

	m.timers.clearAll()

	for i, fn := range handlers {
		m.runCleanupHandler(ctx, i, fn)
	}

	m.logger.Info("connection manager cleaned up", zap.Int("disconnected", len(snapshot)))
}

// DisconnectAll is an alias for Cleanup.
func (m *ConnectionManager) DisconnectAll(ctx context.Context) {
	m.Cleanup(ctx)
}

// Close runs Cleanup once and rejects every later Connect.
func (m *ConnectionManager) Close(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.Cleanup(ctx)
}

func (m *ConnectionManager) runCleanupHandler(ctx context.Context, i int, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("cleanup handler panicked", zap.Int("handler", i), zap.Any("panic", r))
		}
	}()
	if err := fn(ctx); err != nil {
		m.logger.Error("cleanup handler failed", zap.Int("handler", i), zap.Error(err))
	}
}

func (m *ConnectionManager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *ConnectionManager) activeConnection(id string) (*managedConnection, error) {
	m.mu.RLock()
	mc := m.connections[id]
	m.mu.RUnlock()

	if mc == nil {
		return nil, notFound(id)
	}
	if !mc.adapter.IsConnected() {
		return nil, apperrors.Newf(apperrors.KindConnectionFailed, "Connection %s is not active", id).WithConnection(id)
	}
	return mc, nil
}

// cancelAfterFailure destroys the adapter handle. Best-effort: errors are logged.
func (m *ConnectionManager) cancelAfterFailure(ctx context.Context, id string, mc *managedConnection, reason string) {
	if err := mc.adapter.CancelQuery(ctx); err != nil {
		m.logger.Warn("failed to cancel query",
			zap.String("connection_id", id),
			zap.String("reason", reason),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
	m.recordStatus(id, mc)
}

// contextDone destroys the handle of a query whose caller went away and maps
// the context error: a passed deadline is a timeout, anything else a cancel.
func (m *ConnectionManager) contextDone(ctx context.Context, id string, mc *managedConnection, timeout time.Duration, start time.Time) error {
	m.cancelAfterFailure(context.WithoutCancel(ctx), id, mc, "context done")
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		m.observer.QueryCompleted(mc.desc.Type, time.Since(start), apperrors.KindTimeout)
		return timeoutError(id, timeout)
	}
	m.observer.QueryCompleted(mc.desc.Type, time.Since(start), apperrors.KindQueryError)
	return apperrors.Wrap(apperrors.KindQueryError, "Query cancelled", ctx.Err()).WithConnection(id)
}

func (m *ConnectionManager) recordStatus(id string, mc *managedConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connections[id] == mc {
		m.statuses[id] = mc.adapter.GetConnectionStatus()
	}
}

func (m *ConnectionManager) autoDisconnect(id string, adapter Adapter, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), autoDisconnectTimeout)
	defer cancel()

	m.logger.Info("auto-disconnecting", zap.String("connection_id", id), zap.String("reason", reason))
	if err := m.disconnect(ctx, id, adapter); err != nil {
		m.logger.Warn("auto-disconnect failed",
			zap.String("connection_id", id),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
}

func (m *ConnectionManager) healthCheck(id string, mc *managedConnection) {
	m.mu.RLock()
	current := m.connections[id]
	m.mu.RUnlock()
	if current != mc || !mc.adapter.IsConnected() || mc.inflight.Load() > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HealthCheckTimeout)
	defer cancel()

	if _, err := mc.adapter.ExecuteQuery(ctx, healthCheckQuery); err != nil {
		m.logger.Warn("health check failed",
			zap.String("connection_id", id),
			zap.String("error", logging.SanitizeError(err)),
		)
		m.autoDisconnect(id, mc.adapter, "health check failed")
	}
}

func managerClosed(id string) *apperrors.DatabaseError {
	return apperrors.New(apperrors.KindConnectionFailed, "connection manager is closed").WithConnection(id)
}

func notFound(id string) *apperrors.DatabaseError {
	return apperrors.Wrap(apperrors.KindConnectionFailed,
		fmt.Sprintf("Connection %s not found", id),
		apperrors.ErrNotFound,
	).WithConnection(id)
}

func timeoutError(id string, timeout time.Duration) *apperrors.DatabaseError {
	return apperrors.Newf(apperrors.KindTimeout, "Query timeout after %dms", timeout.Milliseconds()).WithConnection(id)
}
