package datasource

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotConnected is returned by adapters asked to work without a live handle.
var ErrNotConnected = errors.New("Not connected to database")

// Adapter owns exactly one network handle to one database.
// Implementations live in subpackages and register themselves via Register.
type Adapter interface {
	// Connect validates the descriptor, then dials with a bounded timeout.
	// The raw driver error is returned on failure.
	Connect(ctx context.Context) error

	// Disconnect closes the handle. Calling it twice is safe.
	Disconnect(ctx context.Context) error

	// ExecuteQuery runs one statement with engine-native placeholders.
	ExecuteQuery(ctx context.Context, sql string, params ...any) (*QueryResult, error)

	GetSchema(ctx context.Context) (*DatabaseSchema, error)

	// TestConnection connects and runs SELECT 1. It never returns an error.
	TestConnection(ctx context.Context) bool

	IsConnected() bool

	// CancelQuery destroys the underlying handle, aborting any running
	// statement. The adapter is left disconnected.
	CancelQuery(ctx context.Context) error

	GetConnectionStatus() ConnectionStatus

	// GetConnectionConfig returns the descriptor without its password.
	GetConnectionConfig() ConnectionDescriptor
}

// StatusTracker holds the shared status bookkeeping for adapters.
// Embed it and call the setters from Connect/Disconnect/CancelQuery.
type StatusTracker struct {
	mu     sync.RWMutex
	status ConnectionStatus
}

// NewStatusTracker starts in the disconnected state.
func NewStatusTracker(id string) *StatusTracker {
	return &StatusTracker{status: ConnectionStatus{ID: id, Status: StateDisconnected}}
}

func (t *StatusTracker) SetConnecting() {
	t.mu.Lock()
	t.status.Status = StateConnecting
	t.status.Error = ""
	t.mu.Unlock()
}

func (t *StatusTracker) SetConnected() {
	now := time.Now()
	t.mu.Lock()
	t.status.Status = StateConnected
	t.status.Error = ""
	t.status.LastConnected = &now
	t.mu.Unlock()
}

func (t *StatusTracker) SetDisconnected() {
	t.mu.Lock()
	t.status.Status = StateDisconnected
	t.mu.Unlock()
}

func (t *StatusTracker) SetError(err error) {
	t.mu.Lock()
	t.status.Status = StateError
	if err != nil {
		t.status.Error = err.Error()
	}
	t.mu.Unlock()
}

// State returns the current lifecycle state.
func (t *StatusTracker) State() ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Status
}

// Status returns a copy of the current status.
func (t *StatusTracker) Status() ConnectionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Clone()
}
