package sqlquery

import (
	"context"
	"fmt"
	"path"
	"strings"
)

const (
	postgresColumns = `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`

	sqliteColumns = `
		SELECT m.name, p.name, p.type
		FROM sqlite_master m
		JOIN pragma_table_info(m.name) p
		WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
		ORDER BY m.name, p.cid`
)

type column struct {
	name string
	typ  string
}

// Describe renders the database layout as one line per table:
//
//	table orders columns ( id integer, total numeric,)
//
// Tables are limited to names matching any SchemaFilter glob when set.
func (t *Tool) Describe(ctx context.Context) (string, error) {
	var query string
	switch t.cfg.Driver {
	case DriverPostgres:
		query = postgresColumns
	case DriverSQLite:
		query = sqliteColumns
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, t.cfg.Driver)
	}

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", t.cfg.Name, err)
	}
	defer rows.Close()

	var order []string
	tables := make(map[string][]column)
	for rows.Next() {
		var table string
		var col column
		if err := rows.Scan(&table, &col.name, &col.typ); err != nil {
			return "", fmt.Errorf("describe %s: %w", t.cfg.Name, err)
		}
		if !t.matchesFilter(table) {
			continue
		}
		if _, seen := tables[table]; !seen {
			order = append(order, table)
		}
		tables[table] = append(tables[table], col)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("describe %s: %w", t.cfg.Name, err)
	}

	var b strings.Builder
	for i, table := range order {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "table %s columns (", table)
		for _, col := range tables[table] {
			fmt.Fprintf(&b, " %s %s,", col.name, strings.ToLower(col.typ))
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}

func (t *Tool) matchesFilter(table string) bool {
	if len(t.cfg.SchemaFilter) == 0 {
		return true
	}
	for _, pattern := range t.cfg.SchemaFilter {
		if ok, _ := path.Match(pattern, table); ok {
			return true
		}
	}
	return false
}
