package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
)

// schemaLoader introspects the connection's current schema.
// Every result set is drained before the next query: one conn, one statement.
type schemaLoader struct {
	conn   *pgx.Conn
	logger *zap.Logger
}

func newSchemaLoader(conn *pgx.Conn, logger *zap.Logger) *schemaLoader {
	return &schemaLoader{conn: conn, logger: logger}
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
	functions, err := l.functions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	procedures, err := l.procedures(ctx)
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
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := l.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
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

// columns uses pg_index.indisprimary for primary key detection.
func (l *schemaLoader) columns(ctx context.Context, table string) ([]datasource.ColumnInfo, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			c.column_default,
			COALESCE(pk.is_pk, false) AS is_primary_key,
			COALESCE(c.column_default LIKE 'nextval%' OR c.is_identity = 'YES', false) AS is_auto_increment
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT DISTINCT a.attname AS column_name, true AS is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary
			  AND n.nspname = current_schema()
			  AND t.relname = $1
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`

	rows, err := l.conn.Query(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make([]datasource.ColumnInfo, 0)
	for rows.Next() {
		var c datasource.ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.DefaultValue, &c.IsPrimaryKey, &c.IsAutoIncrement); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (l *schemaLoader) indexes(ctx context.Context, table string) ([]datasource.IndexInfo, error) {
	const query = `
		SELECT
			i.relname AS index_name,
			a.attname AS column_name,
			ix.indisunique AS is_unique,
			ix.indisprimary AS is_primary
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE t.relname = $1 AND t.relkind = 'r' AND n.nspname = current_schema()
		ORDER BY i.relname, array_position(ix.indkey::int2[], a.attnum)`

	rows, err := l.conn.Query(ctx, query, table)
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

func (l *schemaLoader) foreignKeys(ctx context.Context, table string) ([]datasource.ForeignKeyInfo, error) {
	const query = `
		SELECT
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = current_schema()
		  AND tc.table_name = $1
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := l.conn.Query(ctx, query, table)
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
	query := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()
	if err := l.conn.QueryRow(ctx, query).Scan(&count); err != nil {
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
		SELECT table_name, COALESCE(view_definition, '')
		FROM information_schema.views
		WHERE table_schema = current_schema()
		ORDER BY table_name`

	rows, err := l.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	views, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (datasource.ViewInfo, error) {
		var v datasource.ViewInfo
		err := row.Scan(&v.Name, &v.Definition)
		return v, err
	})
	if err != nil {
		return nil, err
	}

	for i := range views {
		columns, err := l.columns(ctx, views[i].Name)
		if err != nil {
			return nil, fmt.Errorf("columns for view %s: %w", views[i].Name, err)
		}
		views[i].Columns = columns
	}
	return views, nil
}

// routine is one row of the pg_proc listing shared by functions and procedures.
type routine struct {
	oid        uint32
	name       string
	returnType string
	definition string
}

func (l *schemaLoader) routines(ctx context.Context, kind string) ([]routine, error) {
	const query = `
		SELECT
			p.oid,
			p.proname,
			COALESCE(t.typname, ''),
			COALESCE(pg_get_functiondef(p.oid), '')
		FROM pg_proc p
		JOIN pg_namespace n ON p.pronamespace = n.oid
		LEFT JOIN pg_type t ON p.prorettype = t.oid
		WHERE n.nspname = current_schema() AND p.prokind = $1
		ORDER BY p.proname`

	rows, err := l.conn.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (routine, error) {
		var r routine
		err := row.Scan(&r.oid, &r.name, &r.returnType, &r.definition)
		return r, err
	})
}

// parameters reads argument names, types and modes for one routine.
func (l *schemaLoader) parameters(ctx context.Context, oid uint32) ([]datasource.ParameterInfo, error) {
	const query = `
		SELECT
			COALESCE(p.proargnames[s.i], ''),
			format_type(COALESCE(p.proallargtypes[s.i], p.proargtypes[s.i - 1]), NULL),
			COALESCE(p.proargmodes[s.i]::text, 'i')
		FROM pg_proc p,
			generate_series(1, COALESCE(array_length(p.proallargtypes, 1), p.pronargs)) AS s(i)
		WHERE p.oid = $1
		ORDER BY s.i`

	rows, err := l.conn.Query(ctx, query, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := make([]datasource.ParameterInfo, 0)
	for rows.Next() {
		var (
			p    datasource.ParameterInfo
			mode string
		)
		if err := rows.Scan(&p.Name, &p.Type, &mode); err != nil {
			return nil, err
		}
		// 't' marks a RETURNS TABLE column, not a call parameter
		if mode == "t" {
			continue
		}
		p.Mode = datasource.NormalizeParameterMode(mode)
		params = append(params, p)
	}
	return params, rows.Err()
}

func (l *schemaLoader) functions(ctx context.Context) ([]datasource.FunctionInfo, error) {
	routines, err := l.routines(ctx, "f")
	if err != nil {
		return nil, err
	}

	functions := make([]datasource.FunctionInfo, 0, len(routines))
	for _, r := range routines {
		params, err := l.parameters(ctx, r.oid)
		if err != nil {
			return nil, fmt.Errorf("parameters for %s: %w", r.name, err)
		}
		returnType := r.returnType
		if returnType == "" {
			returnType = "unknown"
		}
		functions = append(functions, datasource.FunctionInfo{
			Name:       r.name,
			Parameters: params,
			ReturnType: returnType,
			Definition: r.definition,
		})
	}
	return functions, nil
}

func (l *schemaLoader) procedures(ctx context.Context) ([]datasource.ProcedureInfo, error) {
	routines, err := l.routines(ctx, "p")
	if err != nil {
		return nil, err
	}

	procedures := make([]datasource.ProcedureInfo, 0, len(routines))
	for _, r := range routines {
		params, err := l.parameters(ctx, r.oid)
		if err != nil {
			return nil, fmt.Errorf("parameters for %s: %w", r.name, err)
		}
		procedures = append(procedures, datasource.ProcedureInfo{
			Name:       r.name,
			Parameters: params,
			Definition: r.definition,
		})
	}
	return procedures, nil
}
