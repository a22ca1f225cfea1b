package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
)

// schemaLoader introspects one MySQL schema through information_schema.
// The handle allows a single open connection, so every result set is fully
// drained before the next query starts.
type schemaLoader struct {
	db     *sql.DB
	schema string
	logger *zap.Logger
}

func newSchemaLoader(db *sql.DB, schema string, logger *zap.Logger) *schemaLoader {
	return &schemaLoader{db: db, schema: schema, logger: logger}
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
	params, err := l.routineParameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routine parameters: %w", err)
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
	const query = `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	names, err := l.strings(ctx, query, l.schema)
	if err != nil {
		return nil, err
	}

	tables := make([]datasource.TableInfo, 0, len(names))
	for _, name := range names {
		columns, err := l.columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("columns for %s: %w", name, err)
		}
		indexes, err := l.indexes(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("indexes for %s: %w", name, err)
		}
		fks, err := l.foreignKeys(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("foreign keys for %s: %w", name, err)
		}
		tables = append(tables, datasource.TableInfo{
			Name:        name,
			Columns:     columns,
			Indexes:     indexes,
			ForeignKeys: fks,
			RowCount:    l.rowCount(ctx, name),
		})
	}
	return tables, nil
}

func (l *schemaLoader) columns(ctx context.Context, table string) ([]datasource.ColumnInfo, error) {
	const query = `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY, EXTRA
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := l.db.QueryContext(ctx, query, l.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make([]datasource.ColumnInfo, 0)
	for rows.Next() {
		var (
			name, dataType, nullable string
			def, key, extra          sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &nullable, &def, &key, &extra); err != nil {
			return nil, err
		}
		col := datasource.ColumnInfo{
			Name:            name,
			Type:            dataType,
			Nullable:        nullable == "YES",
			IsPrimaryKey:    key.String == "PRI",
			IsAutoIncrement: strings.Contains(strings.ToLower(extra.String), "auto_increment"),
		}
		if def.Valid {
			col.DefaultValue = &def.String
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (l *schemaLoader) indexes(ctx context.Context, table string) ([]datasource.IndexInfo, error) {
	const query = `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`

	rows, err := l.db.QueryContext(ctx, query, l.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexes := make([]datasource.IndexInfo, 0)
	byName := make(map[string]int)
	for rows.Next() {
		var (
			indexName, column string
			nonUnique         int
		)
		if err := rows.Scan(&indexName, &column, &nonUnique); err != nil {
			return nil, err
		}
		i, ok := byName[indexName]
		if !ok {
			i = len(indexes)
			byName[indexName] = i
			indexes = append(indexes, datasource.IndexInfo{
				Name:      indexName,
				IsUnique:  nonUnique == 0,
				IsPrimary: indexName == "PRIMARY",
			})
		}
		indexes[i].Columns = append(indexes[i].Columns, column)
	}
	return indexes, rows.Err()
}

func (l *schemaLoader) foreignKeys(ctx context.Context, table string) ([]datasource.ForeignKeyInfo, error) {
	const query = `
		SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`

	rows, err := l.db.QueryContext(ctx, query, l.schema, table)
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

// rowCount returns 0 when the count fails, e.g. for lack of SELECT privilege.
func (l *schemaLoader) rowCount(ctx context.Context, table string) int64 {
	var count int64
	query := "SELECT COUNT(*) FROM " + quoteIdentifier(table)
	if err := l.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		l.logger.Debug("row count failed",
			zap.String("table", table),
			zap.String("error", logging.SanitizeError(err)),
		)
		return 0
	}
	return count
}

func (l *schemaLoader) views(ctx context.Context) ([]datasource.ViewInfo, error) {
	const query = `
		SELECT TABLE_NAME, VIEW_DEFINITION
		FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`

	rows, err := l.db.QueryContext(ctx, query, l.schema)
	if err != nil {
		return nil, err
	}
	views := make([]datasource.ViewInfo, 0)
	for rows.Next() {
		var (
			name string
			def  sql.NullString
		)
		if err := rows.Scan(&name, &def); err != nil {
			rows.Close()
			return nil, err
		}
		views = append(views, datasource.ViewInfo{Name: name, Definition: def.String})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range views {
		columns, err := l.columns(ctx, views[i].Name)
		if err != nil {
			return nil, fmt.Errorf("columns for view %s: %w", views[i].Name, err)
		}
		views[i].Columns = columns
	}
	return views, nil
}

// routineParameters returns parameters keyed by routine name. Ordinal 0 is a
// function's return value and is skipped.
func (l *schemaLoader) routineParameters(ctx context.Context) (map[string][]datasource.ParameterInfo, error) {
	const query = `
		SELECT SPECIFIC_NAME, PARAMETER_NAME, DTD_IDENTIFIER, PARAMETER_MODE
		FROM information_schema.PARAMETERS
		WHERE SPECIFIC_SCHEMA = ? AND ORDINAL_POSITION > 0
		ORDER BY SPECIFIC_NAME, ORDINAL_POSITION`

	rows, err := l.db.QueryContext(ctx, query, l.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := make(map[string][]datasource.ParameterInfo)
	for rows.Next() {
		var (
			routine         string
			name, typ, mode sql.NullString
		)
		if err := rows.Scan(&routine, &name, &typ, &mode); err != nil {
			return nil, err
		}
		params[routine] = append(params[routine], datasource.ParameterInfo{
			Name: name.String,
			Type: typ.String,
			Mode: datasource.NormalizeParameterMode(mode.String),
		})
	}
	return params, rows.Err()
}

func (l *schemaLoader) functions(ctx context.Context, params map[string][]datasource.ParameterInfo) ([]datasource.FunctionInfo, error) {
	const query = `
		SELECT ROUTINE_NAME, ROUTINE_DEFINITION, DATA_TYPE
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'FUNCTION'
		ORDER BY ROUTINE_NAME`

	rows, err := l.db.QueryContext(ctx, query, l.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	functions := make([]datasource.FunctionInfo, 0)
	for rows.Next() {
		var (
			name          string
			def, dataType sql.NullString
		)
		if err := rows.Scan(&name, &def, &dataType); err != nil {
			return nil, err
		}
		returnType := dataType.String
		if returnType == "" {
			returnType = "unknown"
		}
		functions = append(functions, datasource.FunctionInfo{
			Name:       name,
			Parameters: nonNilParams(params[name]),
			ReturnType: returnType,
			Definition: def.String,
		})
	}
	return functions, rows.Err()
}

func (l *schemaLoader) procedures(ctx context.Context, params map[string][]datasource.ParameterInfo) ([]datasource.ProcedureInfo, error) {
	const query = `
		SELECT ROUTINE_NAME, ROUTINE_DEFINITION
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'PROCEDURE'
		ORDER BY ROUTINE_NAME`

	rows, err := l.db.QueryContext(ctx, query, l.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	procedures := make([]datasource.ProcedureInfo, 0)
	for rows.Next() {
		var (
			name string
			def  sql.NullString
		)
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		procedures = append(procedures, datasource.ProcedureInfo{
			Name:       name,
			Parameters: nonNilParams(params[name]),
			Definition: def.String,
		})
	}
	return procedures, rows.Err()
}

func (l *schemaLoader) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func nonNilParams(p []datasource.ParameterInfo) []datasource.ParameterInfo {
	if p == nil {
		return []datasource.ParameterInfo{}
	}
	return p
}
