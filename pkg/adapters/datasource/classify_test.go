package datasource

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want apperrors.Kind
	}{
		{`password authentication failed for user "app"`, apperrors.KindAuthenticationFailed},
		{"Error 1045 (28000): Access denied for user 'app'@'10.0.0.1'", apperrors.KindAuthenticationFailed},
		{"mssql: login failed for user 'sa'", apperrors.KindAuthenticationFailed},
		{"access denied", apperrors.KindAuthenticationFailed},
		{"dial tcp 127.0.0.1:5432: connect: connection refused", apperrors.KindNetworkError},
		{"read: ECONNRESET", apperrors.KindNetworkError},
		{"dial tcp: lookup db.invalid: no such host", apperrors.KindNetworkError},
		{"unexpected EOF", apperrors.KindNetworkError},
		{"driver: bad connection", apperrors.KindNetworkError},
		{"read tcp 10.0.0.1:5432: i/o timeout", apperrors.KindNetworkError},
		{"EOF", apperrors.KindNetworkError},
		{`relation "missing" does not exist`, apperrors.KindQueryError},
		{"Error 1064 (42000): You have an error in your SQL syntax", apperrors.KindQueryError},
		{"Invalid column name 'nope'.", apperrors.KindQueryError},
		{`column "author_id" does not exist`, apperrors.KindQueryError},
		{"Error 1054 (42S22): Unknown column 'password_hash' in 'field list'", apperrors.KindQueryError},
		{`relation "connections" does not exist`, apperrors.KindQueryError},
		{`column "geofence" does not exist`, apperrors.KindQueryError},
		{`column "timeout_ms" does not exist`, apperrors.KindQueryError},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(errors.New(tt.msg)))
		})
	}
}

func TestClassifyError_TypedErrors(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	assert.Equal(t, apperrors.KindNetworkError, ClassifyError(fmt.Errorf("ping: %w", netErr)))
	assert.Equal(t, apperrors.KindNetworkError, ClassifyError(driver.ErrBadConn))
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Equal(t, apperrors.Kind(""), ClassifyError(nil))
}
