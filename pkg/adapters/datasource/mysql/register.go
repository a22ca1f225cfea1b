//go:build !no_mysql

package mysql

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        datasource.EngineMySQL,
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+, MariaDB, Aurora MySQL",
			DefaultPort: DefaultPort(),
		},
		Factory: func(desc datasource.ConnectionDescriptor, logger *zap.Logger) (datasource.Adapter, error) {
			return NewAdapter(desc, logger), nil
		},
	})
}
