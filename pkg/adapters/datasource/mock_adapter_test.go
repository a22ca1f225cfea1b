package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// mockAdapter is an in-memory Adapter. Hanging queries return once
// CancelQuery is called or their context ends.
type mockAdapter struct {
	*StatusTracker
	desc ConnectionDescriptor

	mu        sync.Mutex
	connected bool
	cancelled chan struct{}

	connectErr    error
	connectErrs   []error
	beforeConnect func()
	disconnectErr error
	queryFn       func(ctx context.Context, a *mockAdapter, sql string, params []any) (*QueryResult, error)
	schema        *DatabaseSchema
	testResult    bool
	panicOnTest   bool

	dials       atomic.Int32
	queries     atomic.Int32
	cancels     atomic.Int32
	disconnects atomic.Int32
	lastSQL     atomic.Value
}

func newMockAdapter(desc ConnectionDescriptor) *mockAdapter {
	return &mockAdapter{
		StatusTracker: NewStatusTracker(desc.ID),
		desc:          desc,
		cancelled:     make(chan struct{}),
		testResult:    true,
	}
}

func (m *mockAdapter) Connect(ctx context.Context) error {
	if err := m.desc.Validate(); err != nil {
		m.SetError(err)
		return err
	}
	m.SetConnecting()
	m.dials.Add(1)
	if m.beforeConnect != nil {
		m.beforeConnect()
	}
	err := m.connectErr
	m.mu.Lock()
	if len(m.connectErrs) > 0 {
		err, m.connectErrs = m.connectErrs[0], m.connectErrs[1:]
	}
	m.mu.Unlock()
	if err != nil {
		m.SetError(err)
		return err
	}

	m.mu.Lock()
	m.connected = true
	m.cancelled = make(chan struct{})
	m.mu.Unlock()
	m.SetConnected()
	return nil
}

func (m *mockAdapter) Disconnect(ctx context.Context) error {
	m.disconnects.Add(1)
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	if m.disconnectErr != nil {
		m.SetError(m.disconnectErr)
		return m.disconnectErr
	}
	m.SetDisconnected()
	return nil
}

func (m *mockAdapter) ExecuteQuery(ctx context.Context, sql string, params ...any) (*QueryResult, error) {
	if !m.IsConnected() {
		return nil, ErrNotConnected
	}
	m.queries.Add(1)
	m.lastSQL.Store(sql)
	if m.queryFn != nil {
		return m.queryFn(ctx, m, sql, params)
	}
	return &QueryResult{
		Rows:     []map[string]any{{"?column?": int64(1)}},
		Fields:   []FieldInfo{{Name: "?column?", Type: "23"}},
		RowCount: 1,
	}, nil
}

func (m *mockAdapter) GetSchema(ctx context.Context) (*DatabaseSchema, error) {
	if !m.IsConnected() {
		return nil, ErrNotConnected
	}
	if m.schema == nil {
		return nil, errors.New("relation \"pg_class\" does not exist")
	}
	return m.schema, nil
}

func (m *mockAdapter) TestConnection(ctx context.Context) bool {
	if m.panicOnTest {
		panic("driver exploded")
	}
	if err := m.Connect(ctx); err != nil {
		return false
	}
	return m.testResult
}

func (m *mockAdapter) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && m.State() == StateConnected
}

func (m *mockAdapter) CancelQuery(ctx context.Context) error {
	m.cancels.Add(1)
	m.mu.Lock()
	if m.connected {
		m.connected = false
		close(m.cancelled)
	}
	m.mu.Unlock()
	m.SetDisconnected()
	return nil
}

func (m *mockAdapter) GetConnectionStatus() ConnectionStatus {
	return m.Status()
}

func (m *mockAdapter) GetConnectionConfig() ConnectionDescriptor {
	return m.desc.Redacted()
}

// hang blocks until the adapter is cancelled, like a driver that ignores
// its context and only returns once the socket is closed.
func (m *mockAdapter) hang() error {
	m.mu.Lock()
	cancelled := m.cancelled
	m.mu.Unlock()

	select {
	case <-cancelled:
		return errors.New("terminating connection due to administrator command")
	case <-time.After(5 * time.Second):
		return errors.New("mock query was never cancelled")
	}
}

// mockFactory builds mockAdapters, letting tests configure each one.
type mockFactory struct {
	mu        sync.Mutex
	configure func(a *mockAdapter)
	newErr    error
	created   []*mockAdapter
}

func (f *mockFactory) NewAdapter(desc ConnectionDescriptor) (Adapter, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	a := newMockAdapter(desc)
	if f.configure != nil {
		f.configure(a)
	}
	f.mu.Lock()
	f.created = append(f.created, a)
	f.mu.Unlock()
	return a, nil
}

func (f *mockFactory) ListTypes() []AdapterInfo {
	return nil
}

func (f *mockFactory) adapters() []*mockAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*mockAdapter, len(f.created))
	copy(out, f.created)
	return out
}

func (f *mockFactory) last() *mockAdapter {
	all := f.adapters()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func validDescriptor(id string) ConnectionDescriptor {
	return ConnectionDescriptor{
		ID:       id,
		Name:     "local " + id,
		Type:     EnginePostgres,
		Host:     "localhost",
		Port:     5432,
		Database: "app",
		Username: "app",
		Password: "secret",
	}
}
