package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

func TestObserver_ConnectAttempt(t *testing.T) {
	o := NewObserver()

	o.ConnectAttempt(datasource.EnginePostgres, nil)
	o.ConnectAttempt(datasource.EnginePostgres, nil)
	o.ConnectAttempt(datasource.EngineMySQL, errors.New("connection refused"))

	assert.Equal(t, 2.0, testutil.ToFloat64(o.connectAttempts.WithLabelValues("postgresql", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.connectAttempts.WithLabelValues("mysql", "failure")))
	assert.Equal(t, 0.0, testutil.ToFloat64(o.connectAttempts.WithLabelValues("mysql", "success")))
}

func TestObserver_ConnectionsChanged(t *testing.T) {
	o := NewObserver()

	o.ConnectionsChanged(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(o.activeConnections))

	o.ConnectionsChanged(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(o.activeConnections))
}

func TestObserver_QueryCompleted(t *testing.T) {
	o := NewObserver()

	o.QueryCompleted(datasource.EnginePostgres, 20*time.Millisecond, "")
	o.QueryCompleted(datasource.EnginePostgres, time.Second, apperrors.KindTimeout)
	o.QueryCompleted(datasource.EnginePostgres, time.Millisecond, apperrors.KindQueryError)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.queryErrors.WithLabelValues("postgresql", "TIMEOUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.queryErrors.WithLabelValues("postgresql", "QUERY_ERROR")))
	assert.Equal(t, 2, testutil.CollectAndCount(o.queryDuration))
}

func TestObserver_Handler(t *testing.T) {
	o := NewObserver()
	o.ConnectionsChanged(2)

	mux := http.NewServeMux()
	o.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dbclient_active_connections 2")
	assert.Contains(t, string(body), "go_goroutines")
}
