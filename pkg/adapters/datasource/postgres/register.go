//go:build !no_postgres

package postgres

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        datasource.EnginePostgres,
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			DefaultPort: DefaultPort(),
		},
		Factory: func(desc datasource.ConnectionDescriptor, logger *zap.Logger) (datasource.Adapter, error) {
			return NewAdapter(desc, logger), nil
		},
	})
}
