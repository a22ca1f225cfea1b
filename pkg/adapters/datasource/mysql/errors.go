package mysql

import (
	"errors"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

// MySQL error numbers that are not query errors.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied     = 1044
	errAccessDenied       = 1045
	errAccessDeniedNoPass = 1698
	errPasswordExpired    = 1862
	errServerShutdown     = 1053
	errConnRefused        = 2003
	errServerGone         = 2006
	errServerLost         = 2013
)

// ClassifyError maps go-sql-driver/mysql errors onto the error taxonomy.
func (dialect) ClassifyError(err error) (apperrors.Kind, bool) {
	if errors.Is(err, gomysql.ErrInvalidConn) {
		return apperrors.KindNetworkError, true
	}

	var mysqlErr *gomysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return "", false
	}
	switch mysqlErr.Number {
	case errDBAccessDenied, errAccessDenied, errAccessDeniedNoPass, errPasswordExpired:
		return apperrors.KindAuthenticationFailed, true
	case errServerShutdown, errConnRefused, errServerGone, errServerLost:
		return apperrors.KindNetworkError, true
	default:
		return apperrors.KindQueryError, true
	}
}
