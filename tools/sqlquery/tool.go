// Package sqlquery exposes a SQL database as a read-only query tool.
//
// Every statement runs inside its own read-only transaction that is rolled
// back on every path, so no statement the model sends can change stored data.
// Transaction control and ATTACH/DETACH are refused outright, and SQLite
// connections are discarded after each call so pragmas never carry over.
package sqlquery

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/core/value"
	"github.com/tailored-agentic-units/toolbench/tools"
)

var (
	ErrUnsupportedDriver = errors.New("unsupported sql driver")
	ErrNotAllowed        = errors.New("statement not allowed")
)

// Leading keywords that would end the enclosing transaction or change which
// databases the connection can see.
var refused = map[string]bool{
	"BEGIN":     true,
	"COMMIT":    true,
	"END":       true,
	"ROLLBACK":  true,
	"SAVEPOINT": true,
	"RELEASE":   true,
	"ATTACH":    true,
	"DETACH":    true,
}

// Input is the argument object the model sends.
type Input struct {
	SQL string `json:"sql" jsonschema_description:"SQL query to execute"`
}

// Tool runs read-only statements against one database. The connection pool is
// opened once and shared by all calls; each call gets its own transaction.
type Tool struct {
	cfg    Config
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the configured data source.
func Open(cfg Config, logger *slog.Logger) (*Tool, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}
	return New(cfg, db, logger), nil
}

// New wraps an existing pool. The driver named in cfg selects dialect
// specifics such as schema introspection.
func New(cfg Config, db *sql.DB, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tool{cfg: cfg, db: db, logger: logger}
}

func (t *Tool) Name() string { return t.cfg.Name }

func (t *Tool) Config() Config { return t.cfg }

// Schema returns the tool definition advertised to the model.
func (t *Tool) Schema() protocol.Tool {
	return protocol.Tool{
		Name:        t.cfg.Name,
		Description: t.cfg.Description,
		Parameters:  tools.GenerateSchema[Input](),
	}
}

// Execute runs query in a read-only transaction and returns every row as a
// column-name to portable-value map. The transaction is always rolled back.
func (t *Tool) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	t.logger.DebugContext(ctx, "executing sql", slog.String("tool", t.cfg.Name), slog.String("sql", query))

	if kw := leadingKeyword(query); refused[kw] {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, kw)
	}

	conn, err := t.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer t.release(conn)

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback()

	if t.cfg.Driver == DriverSQLite {
		if _, err := tx.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return nil, fmt.Errorf("enable query_only: %w", err)
		}
	}

	// Prepared statements hold exactly one statement, so a trailing
	// "COMMIT; DROP ..." cannot escape the transaction.
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// release returns conn to the pool. SQLite connection state (pragmas,
// attachments, query_only) outlives the transaction, so those connections
// are dropped from the pool instead.
func (t *Tool) release(conn *sql.Conn) {
	if t.cfg.Driver == DriverSQLite {
		conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	conn.Close()
}

// leadingKeyword returns the first word of query in upper case, skipping
// whitespace and SQL comments.
func leadingKeyword(query string) string {
	q := query
	for {
		q = strings.TrimLeft(q, " \t\r\n;(")
		switch {
		case strings.HasPrefix(q, "--"):
			_, rest, ok := strings.Cut(q, "\n")
			if !ok {
				return ""
			}
			q = rest
		case strings.HasPrefix(q, "/*"):
			_, rest, ok := strings.Cut(q, "*/")
			if !ok {
				return ""
			}
			q = rest
		default:
			end := strings.IndexFunc(q, func(r rune) bool {
				return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				end = len(q)
			}
			return strings.ToUpper(q[:end])
		}
	}
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(types))
		for i, ct := range types {
			row[ct.Name()] = normalize(ct, vals[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func normalize(ct *sql.ColumnType, v any) any {
	base, _, _ := strings.Cut(strings.ToUpper(ct.DatabaseTypeName()), "(")
	switch strings.TrimSpace(base) {
	case "DATE":
		if d, ok := v.(time.Time); ok {
			return value.Date(d)
		}
	case "NUMERIC", "DECIMAL":
		switch x := v.(type) {
		case []byte:
			return value.Portable(value.Decimal(x))
		case string:
			return value.Portable(value.Decimal(x))
		}
	}
	return value.Portable(v)
}

// Handler adapts Execute to the tools registry. Driver errors are returned
// as an {"error": "..."} payload flagged IsError rather than as a Go error.
func (t *Tool) Handler() tools.Handler {
	return func(ctx context.Context, args json.RawMessage) (tools.Result, error) {
		var in Input
		if err := json.Unmarshal(args, &in); err != nil {
			return tools.Result{}, fmt.Errorf("decode arguments: %w", err)
		}
		if strings.TrimSpace(in.SQL) == "" {
			return tools.Result{Payload: map[string]string{"error": "sql is required"}, IsError: true}, nil
		}

		rows, err := t.Execute(ctx, in.SQL)
		if err != nil {
			return tools.Result{Payload: map[string]string{"error": err.Error()}, IsError: true}, nil
		}
		return tools.Result{Payload: rows}, nil
	}
}

// Register adds the tool to reg.
func (t *Tool) Register(reg *tools.Registry) error {
	return reg.Register(t.Schema(), t.Handler())
}

func (t *Tool) Close() error {
	return t.db.Close()
}
