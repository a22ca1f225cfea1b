package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
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
		{"bad password", &pgconn.PgError{Code: "28P01", Message: "password authentication failed for user \"app\""}, apperrors.KindAuthenticationFailed, true},
		{"no pg_hba entry", &pgconn.PgError{Code: "28000"}, apperrors.KindAuthenticationFailed, true},
		{"permission denied", &pgconn.PgError{Code: "42501", Message: "permission denied for table payroll"}, apperrors.KindQueryError, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, apperrors.KindNetworkError, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"}, apperrors.KindNetworkError, true},
		{"undefined column", &pgconn.PgError{Code: "42703", Message: `column "author_id" does not exist`}, apperrors.KindQueryError, true},
		{"undefined table", &pgconn.PgError{Code: "42P01", Message: `relation "connections" does not exist`}, apperrors.KindQueryError, true},
		{"wrapped", fmt.Errorf("query: %w", &pgconn.PgError{Code: "42601"}), apperrors.KindQueryError, true},
		{"unknown", errors.New("something else"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := NewAdapter(datasource.ConnectionDescriptor{ID: "c1"}, nil).ClassifyError(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}
