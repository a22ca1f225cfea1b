package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

func TestBuildConnectionString_EscapesCredentials(t *testing.T) {
	desc := datasource.ConnectionDescriptor{
		Host:     "db.internal",
		Port:     6543,
		Database: "analytics",
		Username: "report@corp",
		Password: "p@ss/w#rd?",
	}

	cfg, err := buildConnConfig(desc)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, uint16(6543), cfg.Port)
	assert.Equal(t, "analytics", cfg.Database)
	assert.Equal(t, "report@corp", cfg.User)
	assert.Equal(t, "p@ss/w#rd?", cfg.Password)
	assert.Nil(t, cfg.TLSConfig)
	assert.Equal(t, "ekaya-dbclient", cfg.RuntimeParams["application_name"])
	assert.Equal(t, datasource.DefaultConnectTimeout, cfg.ConnectTimeout)
}

func TestBuildConnectionString_SSLAndDefaults(t *testing.T) {
	desc := datasource.ConnectionDescriptor{
		Host:                "db.internal",
		Database:            "app",
		Username:            "app",
		Password:            "secret",
		SSL:                 true,
		ConnectionTimeoutMs: 1500,
	}

	connStr := buildConnectionString(desc)
	assert.Contains(t, connStr, "db.internal:5432")
	assert.Contains(t, connStr, "sslmode=require")

	cfg, err := buildConnConfig(desc)
	require.NoError(t, err)
	assert.Equal(t, uint16(5432), cfg.Port)
	assert.NotNil(t, cfg.TLSConfig)
	assert.Equal(t, 1500*time.Millisecond, cfg.ConnectTimeout)
}

func TestBuildConnectionString_IPv6(t *testing.T) {
	desc := datasource.ConnectionDescriptor{Host: "::1", Port: 5432, Database: "app", Username: "app", Password: "x"}

	cfg, err := buildConnConfig(desc)
	require.NoError(t, err)
	assert.Equal(t, "::1", cfg.Host)
}

func TestSSLMode(t *testing.T) {
	assert.Equal(t, "require", sslMode(true))
	assert.Equal(t, "disable", sslMode(false))
}

func TestAdapter_NotConnected(t *testing.T) {
	a := NewAdapter(datasource.ConnectionDescriptor{ID: "c1", Host: "localhost", Port: 5432, Database: "app", Username: "app", Password: "x"}, nil)

	assert.False(t, a.IsConnected())
	assert.Equal(t, datasource.StateDisconnected, a.GetConnectionStatus().Status)

	_, err := a.ExecuteQuery(t.Context(), "SELECT 1")
	assert.ErrorIs(t, err, datasource.ErrNotConnected)
	_, err = a.GetSchema(t.Context())
	assert.ErrorIs(t, err, datasource.ErrNotConnected)

	require.NoError(t, a.Disconnect(t.Context()))
	require.NoError(t, a.CancelQuery(t.Context()))
	assert.Empty(t, a.GetConnectionConfig().Password)
}

func TestAdapter_ConnectValidates(t *testing.T) {
	a := NewAdapter(datasource.ConnectionDescriptor{ID: "c1", Host: "localhost", Port: 5432, Username: "app", Password: "x"}, nil)

	err := a.Connect(t.Context())
	require.EqualError(t, err, "Database name is required")
	assert.Equal(t, datasource.StateError, a.GetConnectionStatus().Status)
}

func TestNormalizeValue(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	assert.Equal(t, "12345678-9abc-def0-1234-56789abcdef0", normalizeValue(id))
	assert.Equal(t, int32(7), normalizeValue(int32(7)))
}
