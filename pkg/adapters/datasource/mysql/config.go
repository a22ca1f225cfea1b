package mysql

import (
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// BuildDSN converts a descriptor into a go-sql-driver DSN.
func BuildDSN(desc datasource.ConnectionDescriptor) string {
	port := desc.Port
	if port <= 0 {
		port = DefaultPort()
	}

	cfg := gomysql.NewConfig()
	cfg.User = desc.Username
	cfg.Passwd = desc.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(desc.Host, strconv.Itoa(port))
	cfg.DBName = desc.Database
	cfg.Timeout = desc.ConnectTimeout()
	cfg.ParseTime = true
	if desc.SSL {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}
