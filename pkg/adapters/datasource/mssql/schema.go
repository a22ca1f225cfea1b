package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
)

// schemaLoader introspects the login's default schema through the sys catalog views.
type schemaLoader struct {
	db     *sql.DB
	logger *zap.Logger
}

func newSchemaLoader(db *sql.DB, logger *zap.Logger) *schemaLoader {
	return &schemaLoader{db: db, logger: logger}
}

type object struct {
	id   int64
	name string
}

func (l *schemaLoader) load(ctx context.Context) (*datasource.DatabaseSchema, error) {
	tables, err := l.tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	views, err := l.views(ctx)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	params, err := l.parameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	functions, err := l.functions(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	procedures, err := l.procedures(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list procedures: %w", err)
	}

	return &datasource.DatabaseSchema{
		Tables:     tables,
		Views:      views,
		Functions:  functions,
		Procedures: procedures,
	}, nil
}

func (l *schemaLoader) tables(ctx context.Context) ([]datasource.TableInfo, error) {
	query := `
	SELECT t.object_id, t.name
	FROM sys.tables t
	WHERE t.schema_id = SCHEMA_ID()
	  AND t.is_ms_shipped = 0
	ORDER BY t.name
	`

	objects, err := l.objects(ctx, query)
	if err != nil {
		return nil, err
	}

	tables := make([]datasource.TableInfo, 0, len(objects))
	for _, obj := range objects {
		columns, err := l.columns(ctx, obj.id)
		if err != nil {
			return nil, fmt.Errorf("columns for %s: %w", obj.name, err)
		}
		indexes, err := l.indexes(ctx, obj.id)
		if err != nil {
			return nil, fmt.Errorf("indexes for %s: %w", obj.name, err)
		}
		fks, err := l.foreignKeys(ctx, obj.id)
		if err != nil {
			return nil, fmt.Errorf("foreign keys for %s: %w", obj.name, err)
		}
		tables = append(tables, datasource.TableInfo{
			Name:        obj.name,
			Columns:     columns,
			Indexes:     indexes,
			ForeignKeys: fks,
			RowCount:    l.rowCount(ctx, obj),
		})
	}
	return tables, nil
}

func (l *schemaLoader) columns(ctx context.Context, objectID int64) ([]datasource.ColumnInfo, error) {
	query := `
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    c.is_nullable,
	    OBJECT_DEFINITION(c.default_object_id) AS column_default,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
	    c.is_identity
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	WHERE c.object_id = @id
	ORDER BY c.column_id
	`

	rows, err := l.db.QueryContext(ctx, query, sql.Named("id", objectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make([]datasource.ColumnInfo, 0)
	for rows.Next() {
		var (
			col       datasource.ColumnInfo
			def       sql.NullString
			isPrimary int
		)
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &def, &isPrimary, &col.IsAutoIncrement); err != nil {
			return nil, err
		}
		col.IsPrimaryKey = isPrimary == 1
		if def.Valid {
			col.DefaultValue = &def.String
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (l *schemaLoader) indexes(ctx context.Context, objectID int64) ([]datasource.IndexInfo, error) {
	query := `
	SELECT i.name, COL_NAME(ic.object_id, ic.column_id), i.is_unique, i.is_primary_key
	FROM sys.indexes i
	INNER JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
	WHERE i.object_id = @id
	  AND i.name IS NOT NULL
	  AND ic.is_included_column = 0
	ORDER BY i.name, ic.key_ordinal
	`

	rows, err := l.db.QueryContext(ctx, query, sql.Named("id", objectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexes := make([]datasource.IndexInfo, 0)
	byName := make(map[string]int)
	for rows.Next() {
		var (
			indexName, column   string
			isUnique, isPrimary bool
		)
		if err := rows.Scan(&indexName, &column, &isUnique, &isPrimary); err != nil {
			return nil, err
		}
		i, ok := byName[indexName]
		if !ok {
			i = len(indexes)
			byName[indexName] = i
			indexes = append(indexes, datasource.IndexInfo{
				Name:      indexName,
				IsUnique:  isUnique,
				IsPrimary: isPrimary,
			})
		}
		indexes[i].Columns = append(indexes[i].Columns, column)
	}
	return indexes, rows.Err()
}

func (l *schemaLoader) foreignKeys(ctx context.Context, objectID int64) ([]datasource.ForeignKeyInfo, error) {
	query := `
	SELECT
	    fk.name AS constraint_name,
	    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS source_column,
	    OBJECT_NAME(fk.referenced_object_id) AS target_table,
	    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS target_column
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	WHERE fk.parent_object_id = @id
	ORDER BY fk.name, fkc.constraint_column_id
	`

	rows, err := l.db.QueryContext(ctx, query, sql.Named("id", objectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fks := make([]datasource.ForeignKeyInfo, 0)
	for rows.Next() {
		var fk datasource.ForeignKeyInfo
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// rowCount reads the heap or clustered index partition counts, which avoids
// a full scan. It returns 0 on failure.
func (l *schemaLoader) rowCount(ctx context.Context, obj object) int64 {
	query := `
	SELECT COALESCE(SUM(p.rows), 0)
	FROM sys.partitions p
	WHERE p.object_id = @id AND p.index_id IN (0, 1)
	`

	var count int64
	if err := l.db.QueryRowContext(ctx, query, sql.Named("id", obj.id)).Scan(&count); err != nil {
		l.logger.Debug("row count failed",
			zap.String("table", quoteName(obj.name)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return 0
	}
	return count
}

func (l *schemaLoader) views(ctx context.Context) ([]datasource.ViewInfo, error) {
	query := `
	SELECT v.object_id, v.name, COALESCE(OBJECT_DEFINITION(v.object_id), N'')
	FROM sys.views v
	WHERE v.schema_id = SCHEMA_ID()
	  AND v.is_ms_shipped = 0
	ORDER BY v.name
	`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	var (
		ids   []int64
		views []datasource.ViewInfo
	)
	for rows.Next() {
		var (
			id int64
			v  datasource.ViewInfo
		)
		if err := rows.Scan(&id, &v.Name, &v.Definition); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range views {
		columns, err := l.columns(ctx, ids[i])
		if err != nil {
			return nil, fmt.Errorf("columns for view %s: %w", views[i].Name, err)
		}
		views[i].Columns = columns
	}
	if views == nil {
		views = []datasource.ViewInfo{}
	}
	return views, nil
}

// parameters returns routine parameters keyed by object id. parameter_id 0
// is a scalar function's return value and is skipped.
func (l *schemaLoader) parameters(ctx context.Context) (map[int64][]datasource.ParameterInfo, error) {
	query := `
	SELECT p.object_id, p.name, TYPE_NAME(p.user_type_id), p.is_output
	FROM sys.parameters p
	INNER JOIN sys.objects o ON o.object_id = p.object_id
	WHERE o.schema_id = SCHEMA_ID()
	  AND p.parameter_id > 0
	ORDER BY p.object_id, p.parameter_id
	`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := make(map[int64][]datasource.ParameterInfo)
	for rows.Next() {
		var (
			id       int64
			name     string
			typeName sql.NullString
			isOutput bool
		)
		if err := rows.Scan(&id, &name, &typeName, &isOutput); err != nil {
			return nil, err
		}
		mode := datasource.ParamIn
		if isOutput {
			// OUTPUT parameters in T-SQL are also readable on input
			mode = datasource.ParamInOut
		}
		params[id] = append(params[id], datasource.ParameterInfo{
			Name: strings.TrimPrefix(name, "@"),
			Type: typeName.String,
			Mode: mode,
		})
	}
	return params, rows.Err()
}

func (l *schemaLoader) functions(ctx context.Context, params map[int64][]datasource.ParameterInfo) ([]datasource.FunctionInfo, error) {
	query := `
	SELECT
	    o.object_id,
	    o.name,
	    COALESCE(OBJECT_DEFINITION(o.object_id), N''),
	    COALESCE(TYPE_NAME(r.user_type_id), N'TABLE')
	FROM sys.objects o
	LEFT JOIN sys.parameters r ON r.object_id = o.object_id AND r.parameter_id = 0
	WHERE o.schema_id = SCHEMA_ID()
	  AND o.type IN ('FN', 'IF', 'TF')
	  AND o.is_ms_shipped = 0
	ORDER BY o.name
	`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	functions := make([]datasource.FunctionInfo, 0)
	for rows.Next() {
		var (
			id int64
			fn datasource.FunctionInfo
		)
		if err := rows.Scan(&id, &fn.Name, &fn.Definition, &fn.ReturnType); err != nil {
			return nil, err
		}
		fn.Parameters = nonNilParams(params[id])
		functions = append(functions, fn)
	}
	return functions, rows.Err()
}

func (l *schemaLoader) procedures(ctx context.Context, params map[int64][]datasource.ParameterInfo) ([]datasource.ProcedureInfo, error) {
	query := `
	SELECT p.object_id, p.name, COALESCE(OBJECT_DEFINITION(p.object_id), N'')
	FROM sys.procedures p
	WHERE p.schema_id = SCHEMA_ID()
	  AND p.is_ms_shipped = 0
	ORDER BY p.name
	`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	procedures := make([]datasource.ProcedureInfo, 0)
	for rows.Next() {
		var (
			id   int64
			proc datasource.ProcedureInfo
		)
		if err := rows.Scan(&id, &proc.Name, &proc.Definition); err != nil {
			return nil, err
		}
		proc.Parameters = nonNilParams(params[id])
		procedures = append(procedures, proc)
	}
	return procedures, rows.Err()
}

func (l *schemaLoader) objects(ctx context.Context, query string) ([]object, error) {
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []object
	for rows.Next() {
		var o object
		if err := rows.Scan(&o.id, &o.name); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func nonNilParams(p []datasource.ParameterInfo) []datasource.ParameterInfo {
	if p == nil {
		return []datasource.ParameterInfo{}
	}
	return p
}
