package datasource

import (
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
)

// ErrorClassifier is implemented by adapters that can read their driver's
// typed errors (SQLSTATE, server error numbers). ok is false when the error
// is not one the driver recognizes.
type ErrorClassifier interface {
	ClassifyError(err error) (kind apperrors.Kind, ok bool)
}

// Fallback fragments, matched against the lowercased driver message.
// They are whole phrases so identifiers such as author_id, password_hash
// or a table named connections never match.
var (
	authPatterns = []string{
		"authentication failed",
		"access denied",
		"login failed for user",
		"invalid password",
		"no pg_hba.conf entry",
	}

	networkPatterns = []string{
		"connection refused",
		"connection reset",
		"connection timed out",
		"network is unreachable",
		"no route to host",
		"no such host",
		"broken pipe",
		"i/o timeout",
		"unexpected eof",
		"bad connection",
		"invalid connection",
		"conn closed",
		"server closed the connection",
		"econnrefused",
		"econnreset",
		"etimedout",
		"enotfound",
	}
)

// ClassifyError maps a driver error onto the error taxonomy using only
// what any driver exposes: net errors, driver.ErrBadConn and the message.
func ClassifyError(err error) apperrors.Kind {
	if err == nil {
		return ""
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return apperrors.KindNetworkError
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, authPatterns) {
		return apperrors.KindAuthenticationFailed
	}
	if msg == "eof" || containsAny(msg, networkPatterns) {
		return apperrors.KindNetworkError
	}
	return apperrors.KindQueryError
}

// classifyAdapterError prefers the adapter's own classification.
func classifyAdapterError(adapter Adapter, err error) apperrors.Kind {
	if c, ok := adapter.(ErrorClassifier); ok {
		if kind, ok := c.ClassifyError(err); ok {
			return kind
		}
	}
	return ClassifyError(err)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
