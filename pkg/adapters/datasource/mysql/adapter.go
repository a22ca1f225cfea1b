// Package mysql provides the MySQL adapter, built on go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource/sqladapter"
)

type dialect struct {
	logger *zap.Logger
}

func (dialect) DriverName() string { return "mysql" }

func (dialect) DSN(desc datasource.ConnectionDescriptor) (string, error) {
	return BuildDSN(desc), nil
}

func (d dialect) LoadSchema(ctx context.Context, db *sql.DB, desc datasource.ConnectionDescriptor) (*datasource.DatabaseSchema, error) {
	return newSchemaLoader(db, desc.Database, d.logger).load(ctx)
}

// NewAdapter creates a MySQL adapter. It does not connect.
func NewAdapter(desc datasource.ConnectionDescriptor, logger *zap.Logger, opts ...sqladapter.Option) *sqladapter.Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return sqladapter.New(desc, dialect{logger: logger}, logger, opts...)
}
