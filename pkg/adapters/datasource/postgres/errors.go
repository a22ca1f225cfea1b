package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

// PostgreSQL SQLSTATE classes and codes that change how a failure is reported.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassInvalidAuthorization = "28"
	pgClassConnectionException  = "08"

	pgErrAdminShutdown    = "57P01"
	pgErrCrashShutdown    = "57P02"
	pgErrCannotConnectNow = "57P03"
)

// ClassifyError maps pgx errors onto the error taxonomy. Server errors are
// classified by SQLSTATE; dial failures and socket timeouts are network errors.
func (a *Adapter) ClassifyError(err error) (apperrors.Kind, bool) {
	return classifyError(err)
}

func classifyError(err error) (apperrors.Kind, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassInvalidAuthorization):
			return apperrors.KindAuthenticationFailed, true
		case strings.HasPrefix(pgErr.Code, pgClassConnectionException),
			pgErr.Code == pgErrAdminShutdown,
			pgErr.Code == pgErrCrashShutdown,
			pgErr.Code == pgErrCannotConnectNow:
			return apperrors.KindNetworkError, true
		default:
			return apperrors.KindQueryError, true
		}
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return apperrors.KindNetworkError, true
	}
	return "", false
}
