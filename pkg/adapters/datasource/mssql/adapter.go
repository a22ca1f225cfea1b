// Package mssql provides the SQL Server adapter, built on microsoft/go-mssqldb
// with SQL authentication. Statements use @p1, @p2, ... placeholders.
package mssql

import (
	"context"
	"database/sql"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource/sqladapter"
)

type dialect struct {
	logger *zap.Logger
}

func (dialect) DriverName() string { return "sqlserver" }

func (dialect) DSN(desc datasource.ConnectionDescriptor) (string, error) {
	return BuildConnectionString(desc), nil
}

func (d dialect) LoadSchema(ctx context.Context, db *sql.DB, _ datasource.ConnectionDescriptor) (*datasource.DatabaseSchema, error) {
	return newSchemaLoader(db, d.logger).load(ctx)
}

// NewAdapter creates a SQL Server adapter. It does not connect.
func NewAdapter(desc datasource.ConnectionDescriptor, logger *zap.Logger, opts ...sqladapter.Option) *sqladapter.Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return sqladapter.New(desc, dialect{logger: logger}, logger, opts...)
}
