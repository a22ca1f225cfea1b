//go:build !no_mssql

package mssql

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        datasource.EngineSQLServer,
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2019+, Azure SQL Database",
			DefaultPort: DefaultPort(),
		},
		Factory: func(desc datasource.ConnectionDescriptor, logger *zap.Logger) (datasource.Adapter, error) {
			return NewAdapter(desc, logger), nil
		},
	})
}
