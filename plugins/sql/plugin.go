// Package sql provides the sql.query and sql.exec handlers, used to seed
// fixtures and to check what an API wrote to its database.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BDNK1/flowtest/runtime/plugin"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Config holds the SQL plugin configuration
type Config struct {
	Driver          string        `yaml:"driver" default:"postgres" validate:"oneof=postgres sqlite3"`
	DSN             string        `yaml:"dsn" validate:"required,dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10" validate:"gte=1,lte=100"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5" validate:"gte=0,lte=50"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"5m" validate:"gte=0"`
}

// QueryInput defines input for sql.query
type QueryInput struct {
	Query  string `json:"query" validate:"required"`
	Params []any  `json:"params"`
}

// ExecInput defines input for sql.exec
type ExecInput struct {
	Query  string `json:"query" validate:"required"`
	Params []any  `json:"params"`
}

type Plugin struct {
	Config Config
	l      *slog.Logger
	db     *sql.DB
}

func New(l *slog.Logger, raw map[string]any) (*Plugin, error) {
	p := &Plugin{l: l}
	if err := plugin.InitializeConfig(&p.Config, raw); err != nil {
		return nil, fmt.Errorf("sql plugin: %w", err)
	}
	return p, nil
}

func (p *Plugin) Handlers() map[string]plugin.Handler {
	return map[string]plugin.Handler{
		"query": plugin.HandlerFunc(p.Query),
		"exec":  plugin.HandlerFunc(p.Exec),
	}
}

// Initialize opens the connection pool and verifies it.
func (p *Plugin) Initialize(ctx context.Context) error {
	p.l.Debug("Opening database",
		"driver", p.Config.Driver,
		"dsn", maskDSN(p.Config.DSN),
		"max_open_conns", p.Config.MaxOpenConns)

	db, err := sql.Open(p.Config.Driver, p.Config.DSN)
	if err != nil {
		return fmt.Errorf("sql: failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(p.Config.MaxOpenConns)
	db.SetMaxIdleConns(p.Config.MaxIdleConns)
	db.SetConnMaxLifetime(p.Config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("sql: failed to ping database: %w", err)
	}

	p.db = db
	return nil
}

// Shutdown closes the connection pool
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Query runs a SELECT and returns every row. The body carries rows, count,
// found and row (the first row, or null).
func (p *Plugin) Query(ctx context.Context, _ *plugin.Session, params plugin.Params, _ plugin.State) (plugin.Result, error) {
	var in QueryInput
	if err := p.input(params, &in); err != nil {
		return plugin.Result{}, err
	}

	p.l.DebugContext(ctx, "Running query", "query", in.Query, "params", in.Params)
	rows, err := p.db.QueryContext(ctx, in.Query, in.Params...)
	if err != nil {
		return plugin.Result{}, queryError("sql.query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return plugin.Result{}, fmt.Errorf("sql.query: failed to get columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return plugin.Result{}, fmt.Errorf("sql.query: failed to get column types: %w", err)
	}

	out := []any{}
	for rows.Next() {
		row, err := scanRow(cols, colTypes, rows)
		if err != nil {
			return plugin.Result{}, fmt.Errorf("sql.query: failed to scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return plugin.Result{}, queryError("sql.query", err)
	}

	var first any
	if len(out) > 0 {
		first = out[0]
	}
	return plugin.Result{
		OK: true,
		Body: map[string]any{
			"rows":  out,
			"count": len(out),
			"found": len(out) > 0,
			"row":   first,
		},
	}, nil
}

// Exec runs INSERT, UPDATE or DELETE
func (p *Plugin) Exec(ctx context.Context, _ *plugin.Session, params plugin.Params, _ plugin.State) (plugin.Result, error) {
	var in ExecInput
	if err := p.input(params, &in); err != nil {
		return plugin.Result{}, err
	}

	result, err := p.db.ExecContext(ctx, in.Query, in.Params...)
	if err != nil {
		return plugin.Result{}, queryError("sql.exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return plugin.Result{}, fmt.Errorf("sql.exec: failed to get affected rows: %w", err)
	}
	return plugin.Result{OK: true, Body: map[string]any{"affected_rows": affected}}, nil
}

func (p *Plugin) input(params plugin.Params, target any) error {
	if p.db == nil {
		return fmt.Errorf("sql: plugin not initialized")
	}
	if err := plugin.DecodeInput(params, target); err != nil {
		return err
	}
	return plugin.ValidateInput(target)
}

func queryError(op string, err error) error {
	return plugin.NewHandlerError(fmt.Errorf("%s: query failed: %w", op, err)).WithCode("SQL_ERROR")
}

// scanRow scans a single row into a map. Text-like values returned as bytes
// (JSONB, UUID, NUMERIC on postgres; TEXT on sqlite) become strings.
func scanRow(cols []string, colTypes []*sql.ColumnType, rows *sql.Rows) (map[string]any, error) {
	values := make([]any, len(cols))
	valuePtrs := make([]any, len(cols))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	result := make(map[string]any, len(cols))
	for i, col := range cols {
		val := values[i]
		if b, ok := val.([]byte); ok && colTypes[i].DatabaseTypeName() != "BLOB" && colTypes[i].DatabaseTypeName() != "BYTEA" {
			result[col] = string(b)
			continue
		}
		result[col] = val
	}
	return result, nil
}

// maskDSN hides the password of URL-style DSNs for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
