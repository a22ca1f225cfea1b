package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// sslMode maps the descriptor's TLS flag onto a libpq sslmode.
func sslMode(ssl bool) string {
	if ssl {
		return "require"
	}
	return "disable"
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing
// @, /, # or ? do not break URL parsing.
func buildConnectionString(desc datasource.ConnectionDescriptor) string {
	port := desc.Port
	if port <= 0 {
		port = DefaultPort()
	}
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(desc.Username, desc.Password),
		Host:     net.JoinHostPort(desc.Host, strconv.Itoa(port)),
		Path:     "/" + desc.Database,
		RawQuery: "sslmode=" + sslMode(desc.SSL),
	}
	return u.String()
}

// buildConnConfig parses the descriptor into a pgx config with the
// descriptor's connect timeout applied.
func buildConnConfig(desc datasource.ConnectionDescriptor) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(buildConnectionString(desc))
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}
	cfg.ConnectTimeout = desc.ConnectTimeout()
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = make(map[string]string)
	}
	cfg.RuntimeParams["application_name"] = "ekaya-dbclient"
	return cfg, nil
}
