package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/crypto"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/store"
)

// Test encryption key (32 bytes, base64 encoded) - same as crypto/credentials_test.go
const testEncryptionKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

// stubAdapter accepts any descriptor whose password is "good".
type stubAdapter struct {
	*datasource.StatusTracker
	desc datasource.ConnectionDescriptor

	mu        sync.Mutex
	connected bool
}

func (a *stubAdapter) Connect(ctx context.Context) error {
	if err := a.desc.Validate(); err != nil {
		return err
	}
	if a.desc.Password != "good" {
		err := errors.New("password authentication failed for user \"" + a.desc.Username + "\"")
		a.SetError(err)
		return err
	}
	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()
	a.SetConnected()
	return nil
}

func (a *stubAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	a.SetDisconnected()
	return nil
}

func (a *stubAdapter) ExecuteQuery(ctx context.Context, sql string, params ...any) (*datasource.QueryResult, error) {
	if !a.IsConnected() {
		return nil, datasource.ErrNotConnected
	}
	return &datasource.QueryResult{
		Rows:     []map[string]any{{"n": int64(1)}},
		Fields:   []datasource.FieldInfo{{Name: "n", Type: "int4"}},
		RowCount: 1,
	}, nil
}

func (a *stubAdapter) GetSchema(ctx context.Context) (*datasource.DatabaseSchema, error) {
	return &datasource.DatabaseSchema{Tables: []datasource.TableInfo{{Name: "orders"}}}, nil
}

func (a *stubAdapter) TestConnection(ctx context.Context) bool {
	return a.Connect(ctx) == nil
}

func (a *stubAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *stubAdapter) CancelQuery(ctx context.Context) error {
	return a.Disconnect(ctx)
}

func (a *stubAdapter) GetConnectionStatus() datasource.ConnectionStatus {
	return a.Status()
}

func (a *stubAdapter) GetConnectionConfig() datasource.ConnectionDescriptor {
	return a.desc.Redacted()
}

type stubFactory struct {
	mu   sync.Mutex
	seen []datasource.ConnectionDescriptor
}

func (f *stubFactory) NewAdapter(desc datasource.ConnectionDescriptor) (datasource.Adapter, error) {
	f.mu.Lock()
	f.seen = append(f.seen, desc)
	f.mu.Unlock()
	return &stubAdapter{StatusTracker: datasource.NewStatusTracker(desc.ID), desc: desc}, nil
}

func (f *stubFactory) ListTypes() []datasource.AdapterInfo {
	return []datasource.AdapterInfo{
		{Type: datasource.EnginePostgres, DisplayName: "PostgreSQL", DefaultPort: 5432},
		{Type: datasource.EngineMySQL, DisplayName: "MySQL", DefaultPort: 3306},
	}
}

func (f *stubFactory) lastSeen() datasource.ConnectionDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}

type serviceFixture struct {
	svc     ConnectionService
	store   *store.FileStore
	manager *datasource.ConnectionManager
	factory *stubFactory
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	enc, err := crypto.NewCredentialEncryptor(testEncryptionKey)
	require.NoError(t, err)

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "connections.json"), enc, logger)
	require.NoError(t, err)

	factory := &stubFactory{}
	manager := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		IdleTimeout:         time.Minute,
		HealthCheckInterval: time.Minute,
	}, logger, datasource.WithAdapterFactory(factory))
	t.Cleanup(func() { manager.Cleanup(context.Background()) })

	return &serviceFixture{
		svc:     NewConnectionService(st, manager, logger),
		store:   st,
		manager: manager,
		factory: factory,
	}
}

func goodDescriptor() datasource.ConnectionDescriptor {
	return datasource.ConnectionDescriptor{
		Name:     "warehouse",
		Type:     datasource.EnginePostgres,
		Host:     "localhost",
		Port:     5432,
		Database: "warehouse",
		Username: "analyst",
		Password: "good",
	}
}

func TestConnectionService_CreateAndGetAreRedacted(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, goodDescriptor())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, created.Password)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Password)
	assert.Equal(t, "warehouse", got.Name)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Password)

	stored, err := f.store.LoadConnection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "good", stored.Password, "the store keeps the real password")
}

func TestConnectionService_CreateValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(d *datasource.ConnectionDescriptor)
		field  string
	}{
		{"missing type", func(d *datasource.ConnectionDescriptor) { d.Type = "" }, "Type"},
		{"missing host", func(d *datasource.ConnectionDescriptor) { d.Host = "" }, "Host"},
		{"missing password", func(d *datasource.ConnectionDescriptor) { d.Password = "" }, "Password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := goodDescriptor()
			tt.mutate(&desc)

			_, err := f.svc.Create(ctx, desc)
			var verr *datasource.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConnectionService_CreateUnsupportedEngine(t *testing.T) {
	f := newServiceFixture(t)

	desc := goodDescriptor()
	desc.Type = datasource.EngineSQLServer
	_, err := f.svc.Create(context.Background(), desc)
	assert.ErrorIs(t, err, datasource.ErrUnsupportedEngine)
}

func TestConnectionService_CreateDuplicateID(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	desc := goodDescriptor()
	desc.ID = "fixed"
	_, err := f.svc.Create(ctx, desc)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, desc)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestConnectionService_GetUnknown(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConnectionService_UpdateKeepsPasswordWhenEmpty(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, goodDescriptor())
	require.NoError(t, err)

	change := goodDescriptor()
	change.Name = "renamed"
	change.Password = ""
	updated, err := f.svc.Update(ctx, created.ID, change)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Empty(t, updated.Password)
	assert.Equal(t, created.ID, updated.ID)

	stored, err := f.store.LoadConnection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "good", stored.Password)
}

func TestConnectionService_UpdateUnknown(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Update(context.Background(), "missing", goodDescriptor())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConnectionService_UpdateClosesLiveSession(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, goodDescriptor())
	require.NoError(t, err)
	_, err = f.svc.Connect(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, f.manager.IsConnectionActive(created.ID))

	change := goodDescriptor()
	change.Host = "replica"
	_, err = f.svc.Update(ctx, created.ID, change)
	require.NoError(t, err)

	assert.False(t, f.manager.IsConnectionActive(created.ID))
	assert.Equal(t, 0, f.manager.GetActiveConnectionCount())
}

func TestConnectionService_DeleteDisconnectsFirst(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, goodDescriptor())
	require.NoError(t, err)
	_, err = f.svc.Connect(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.Equal(t, 0, f.manager.GetActiveConnectionCount())

	_, err = f.svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, created.ID), apperrors.ErrNotFound)
}

func TestConnectionService_ConnectQueryDisconnect(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, goodDescriptor())
	require.NoError(t, err)

	status, err := f.svc.Connect(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, datasource.StateConnected, status.Status)
	assert.Equal(t, "good", f.factory.lastSeen().Password, "connect uses the decrypted password")

	result, err := f.svc.ExecuteQuery(ctx, created.ID, "SELECT 1", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)

	schema, err := f.svc.GetSchema(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)

	got, ok := f.svc.Status(created.ID)
	require.True(t, ok)
	assert.Equal(t, datasource.StateConnected, got.Status)
	assert.Contains(t, f.svc.AllStatuses(), created.ID)
	assert.Equal(t, 1, f.svc.Stats().TotalConnections)

	sessions := f.svc.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, created.ID, sessions[0].ID)
	assert.Empty(t, sessions[0].Password)

	require.NoError(t, f.svc.Disconnect(ctx, created.ID))
	assert.Equal(t, 0, f.svc.Stats().TotalConnections)
	assert.Empty(t, f.svc.Sessions())
	assert.Equal(t, 0, f.svc.Stats().IdleTimers)
	assert.Equal(t, 0, f.svc.Stats().HealthChecks)
}

func TestConnectionService_ConnectUnknown(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Connect(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConnectionService_ConnectAuthFailure(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	desc := goodDescriptor()
	desc.Password = "wrong"
	created, err := f.svc.Create(ctx, desc)
	require.NoError(t, err)

	_, err = f.svc.Connect(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConnectionFailed))

	status, ok := f.svc.Status(created.ID)
	require.True(t, ok)
	assert.Equal(t, datasource.StateError, status.Status)
}

func TestConnectionService_CancelQuery(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, goodDescriptor())
	require.NoError(t, err)
	_, err = f.svc.Connect(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelQuery(ctx, created.ID))
	assert.False(t, f.manager.IsConnectionActive(created.ID))

	assert.ErrorIs(t, f.svc.CancelQuery(ctx, "missing"), apperrors.ErrNotFound)
}

func TestConnectionService_Test(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	t.Run("unsaved descriptor", func(t *testing.T) {
		ok, err := f.svc.Test(ctx, goodDescriptor())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0, f.manager.GetActiveConnectionCount())
	})

	t.Run("bad password", func(t *testing.T) {
		desc := goodDescriptor()
		desc.Password = "wrong"
		ok, err := f.svc.Test(ctx, desc)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("saved password is reused", func(t *testing.T) {
		created, err := f.svc.Create(ctx, goodDescriptor())
		require.NoError(t, err)

		desc := goodDescriptor()
		desc.ID = created.ID
		desc.Password = ""
		ok, err := f.svc.Test(ctx, desc)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("invalid descriptor", func(t *testing.T) {
		desc := goodDescriptor()
		desc.Port = 0
		_, err := f.svc.Test(ctx, desc)
		var verr *datasource.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestConnectionService_Adapters(t *testing.T) {
	f := newServiceFixture(t)

	adapters := f.svc.Adapters()
	require.Len(t, adapters, 2)
	assert.Equal(t, datasource.EnginePostgres, adapters[0].Type)
}
