package mssql

import (
	"errors"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

// SQL Server error numbers that are not query errors.
const (
	errLoginFailed     = 18456
	errLoginUntrusted  = 18452
	errPasswordExpired = 18487
	errCannotOpenDB    = 4060
)

// ClassifyError maps go-mssqldb server errors onto the error taxonomy.
func (dialect) ClassifyError(err error) (apperrors.Kind, bool) {
	var msErr mssqldb.Error
	if !errors.As(err, &msErr) {
		return "", false
	}
	switch msErr.Number {
	case errLoginFailed, errLoginUntrusted, errPasswordExpired, errCannotOpenDB:
		return apperrors.KindAuthenticationFailed, true
	default:
		return apperrors.KindQueryError, true
	}
}
