package mssql

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

func TestBuildConnectionString(t *testing.T) {
	desc := datasource.ConnectionDescriptor{
		Host:                "sql.internal",
		Port:                14330,
		Database:            "Sales DB",
		Username:            "sa",
		Password:            "P@ss;word=1",
		SSL:                 true,
		ConnectionTimeoutMs: 15000,
	}

	u, err := url.Parse(BuildConnectionString(desc))
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "sql.internal:14330", u.Host)
	assert.Equal(t, "sa", u.User.Username())
	pw, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "P@ss;word=1", pw)

	q := u.Query()
	assert.Equal(t, "Sales DB", q.Get("database"))
	assert.Equal(t, "true", q.Get("encrypt"))
	assert.Equal(t, "15", q.Get("connection timeout"))
	assert.Equal(t, "ekaya-dbclient", q.Get("app name"))
}

func TestBuildConnectionString_Defaults(t *testing.T) {
	desc := datasource.ConnectionDescriptor{Host: "sql.internal", Database: "app", Username: "sa", Password: "x"}

	u, err := url.Parse(BuildConnectionString(desc))
	require.NoError(t, err)
	assert.Equal(t, "sql.internal:1433", u.Host)
	assert.Equal(t, "false", u.Query().Get("encrypt"))
	assert.Equal(t, "10", u.Query().Get("connection timeout"))
}

func TestQuoteName(t *testing.T) {
	assert.Equal(t, "[orders]", quoteName("orders"))
	assert.Equal(t, "[odd]]name]", quoteName("odd]name"))
}
