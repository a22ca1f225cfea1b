package handlers

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/services"
)

// mockConnectionService is a configurable mock for handler tests.
type mockConnectionService struct {
	connections []datasource.ConnectionDescriptor
	result      *datasource.QueryResult
	schema      *datasource.DatabaseSchema
	connStatus  datasource.ConnectionStatus
	statusKnown bool
	testOK      bool
	err         error

	// Capture inputs for verification
	capturedID      string
	capturedDesc    datasource.ConnectionDescriptor
	capturedSQL     string
	capturedParams  []any
	capturedTimeout time.Duration
}

var _ services.ConnectionService = (*mockConnectionService)(nil)

func (m *mockConnectionService) List(ctx context.Context) ([]datasource.ConnectionDescriptor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.connections, nil
}

func (m *mockConnectionService) Get(ctx context.Context, id string) (*datasource.ConnectionDescriptor, error) {
	m.capturedID = id
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.connections {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockConnectionService) Create(ctx context.Context, desc datasource.ConnectionDescriptor) (*datasource.ConnectionDescriptor, error) {
	m.capturedDesc = desc
	if m.err != nil {
		return nil, m.err
	}
	desc.ID = "new-id"
	desc.Password = ""
	return &desc, nil
}

func (m *mockConnectionService) Update(ctx context.Context, id string, desc datasource.ConnectionDescriptor) (*datasource.ConnectionDescriptor, error) {
	m.capturedID = id
	m.capturedDesc = desc
	if m.err != nil {
		return nil, m.err
	}
	desc.ID = id
	desc.Password = ""
	return &desc, nil
}

func (m *mockConnectionService) Delete(ctx context.Context, id string) error {
	m.capturedID = id
	return m.err
}

func (m *mockConnectionService) Test(ctx context.Context, desc datasource.ConnectionDescriptor) (bool, error) {
	m.capturedDesc = desc
	if m.err != nil {
		return false, m.err
	}
	return m.testOK, nil
}

func (m *mockConnectionService) Connect(ctx context.Context, id string) (datasource.ConnectionStatus, error) {
	m.capturedID = id
	if m.err != nil {
		return datasource.ConnectionStatus{}, m.err
	}
	return datasource.ConnectionStatus{ID: id, Status: datasource.StateConnected}, nil
}

func (m *mockConnectionService) Disconnect(ctx context.Context, id string) error {
	m.capturedID = id
	return m.err
}

func (m *mockConnectionService) ExecuteQuery(ctx context.Context, id, sql string, params []any, timeout time.Duration) (*datasource.QueryResult, error) {
	m.capturedID = id
	m.capturedSQL = sql
	m.capturedParams = params
	m.capturedTimeout = timeout
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockConnectionService) CancelQuery(ctx context.Context, id string) error {
	m.capturedID = id
	return m.err
}

func (m *mockConnectionService) GetSchema(ctx context.Context, id string) (*datasource.DatabaseSchema, error) {
	m.capturedID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.schema, nil
}

func (m *mockConnectionService) Status(id string) (datasource.ConnectionStatus, bool) {
	m.capturedID = id
	return m.connStatus, m.statusKnown
}

func (m *mockConnectionService) AllStatuses() map[string]datasource.ConnectionStatus {
	return map[string]datasource.ConnectionStatus{"c1": m.connStatus}
}

func (m *mockConnectionService) Sessions() []datasource.ConnectionDescriptor {
	return m.connections
}

func (m *mockConnectionService) Stats() datasource.ConnectionStats {
	return datasource.ConnectionStats{TotalConnections: 1, MaxConnections: 10}
}

func (m *mockConnectionService) Adapters() []datasource.AdapterInfo {
	return []datasource.AdapterInfo{{Type: datasource.EnginePostgres, DisplayName: "PostgreSQL", DefaultPort: 5432}}
}

// GetStats lets the mock stand in for the manager as a StatsProvider.
func (m *mockConnectionService) GetStats() datasource.ConnectionStats {
	return m.Stats()
}
