package sqladapter

import (
	"database/sql"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

var (
	rowReturningKeywords = map[string]bool{
		"SELECT":   true,
		"WITH":     true,
		"SHOW":     true,
		"DESCRIBE": true,
		"DESC":     true,
		"EXPLAIN":  true,
		"VALUES":   true,
		"CALL":     true,
		"EXEC":     true,
		"EXECUTE":  true,
		"PRAGMA":   true,
	}

	returningClause = regexp.MustCompile(`(?i)\b(RETURNING|OUTPUT)\b`)
	lineComment     = regexp.MustCompile(`--[^\n]*`)
	blockComment    = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// IsRowReturning guesses whether sql produces a result set, which decides
// between QueryContext and ExecContext.
func IsRowReturning(sql string) bool {
	s := blockComment.ReplaceAllString(sql, " ")
	s = lineComment.ReplaceAllString(s, " ")
	s = strings.TrimLeft(s, " \t\r\n(;")

	first := s
	if i := strings.IndexAny(s, " \t\r\n(;"); i >= 0 {
		first = s[:i]
	}
	if rowReturningKeywords[strings.ToUpper(first)] {
		return true
	}
	return returningClause.MatchString(s)
}

// ScanRows drains rows into maps keyed by column name. []byte values are
// returned as strings.
func ScanRows(rows *sql.Rows) ([]map[string]any, []datasource.FieldInfo, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}

	fields := make([]datasource.FieldInfo, len(columnTypes))
	for i, ct := range columnTypes {
		fields[i] = datasource.FieldInfo{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
		if length, ok := ct.Length(); ok {
			fields[i].Length = &length
		}
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		row := make(map[string]any, len(fields))
		for i, f := range fields {
			if b, ok := values[i].([]byte); ok {
				row[f.Name] = string(b)
			} else {
				row[f.Name] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return result, fields, nil
}
