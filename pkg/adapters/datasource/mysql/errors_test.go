package mysql

import (
	"errors"
	"fmt"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Kind
		ok   bool
	}{
		{"access denied", &gomysql.MySQLError{Number: 1045, Message: "Access denied for user 'app'@'10.0.0.1'"}, apperrors.KindAuthenticationFailed, true},
		{"database access denied", &gomysql.MySQLError{Number: 1044}, apperrors.KindAuthenticationFailed, true},
		{"server gone", &gomysql.MySQLError{Number: 2006}, apperrors.KindNetworkError, true},
		{"invalid connection", fmt.Errorf("exec: %w", gomysql.ErrInvalidConn), apperrors.KindNetworkError, true},
		{"unknown column", &gomysql.MySQLError{Number: 1054, Message: "Unknown column 'password_hash' in 'field list'"}, apperrors.KindQueryError, true},
		{"missing table", &gomysql.MySQLError{Number: 1146, Message: "Table 'app.connections' doesn't exist"}, apperrors.KindQueryError, true},
		{"not a driver error", errors.New("boom"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := NewAdapter(datasource.ConnectionDescriptor{ID: "c1"}, nil).ClassifyError(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}
