//go:build integration

package testhelpers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

func TestPostgresDB_Descriptor(t *testing.T) {
	db := GetPostgresDB(t)

	assert.Equal(t, datasource.EnginePostgres, db.Descriptor.Type)
	assert.NoError(t, db.Descriptor.Validate())
	assert.Same(t, db, GetPostgresDB(t), "the container is shared")
}

func TestMySQLDB_Descriptor(t *testing.T) {
	db := GetMySQLDB(t)

	assert.Equal(t, datasource.EngineMySQL, db.Descriptor.Type)
	assert.NoError(t, db.Descriptor.Validate())
}
