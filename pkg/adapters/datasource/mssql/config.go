package mssql

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// BuildConnectionString builds a sqlserver:// URL using SQL authentication.
// User-provided fields are escaped so special characters survive URL parsing.
func BuildConnectionString(desc datasource.ConnectionDescriptor) string {
	port := desc.Port
	if port <= 0 {
		port = DefaultPort()
	}

	query := url.Values{}
	query.Add("database", desc.Database)
	if desc.SSL {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	query.Add("connection timeout", strconv.Itoa(int(desc.ConnectTimeout().Seconds())))
	query.Add("app name", "ekaya-dbclient")

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(desc.Username, desc.Password),
		Host:     net.JoinHostPort(desc.Host, strconv.Itoa(port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// quoteName mirrors T-SQL QUOTENAME: square brackets with ] doubled.
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}
