package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows over a fixed value grid.
type rowsStub struct {
	rows [][]any
	idx  int
	err  error
}

func (r *rowsStub) Close()                                       {}
func (r *rowsStub) Err() error                                   { return r.err }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Values() ([]any, error)                       { return nil, nil }
func (r *rowsStub) RawValues() [][]byte                          { return nil }
func (r *rowsStub) Conn() *pgx.Conn                              { return nil }

func (r *rowsStub) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *rowsStub) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan arity: want %d, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, src any) error {
	switch d := dest.(type) {
	case *string:
		d2, ok := src.(string)
		if !ok {
			return fmt.Errorf("assign %T to *string", src)
		}
		*d = d2
	case *int:
		d2, ok := src.(int)
		if !ok {
			return fmt.Errorf("assign %T to *int", src)
		}
		*d = d2
	case *int64:
		d2, ok := src.(int64)
		if !ok {
			return fmt.Errorf("assign %T to *int64", src)
		}
		*d = d2
	case *time.Time:
		d2, ok := src.(time.Time)
		if !ok {
			return fmt.Errorf("assign %T to *time.Time", src)
		}
		*d = d2
	default:
		return fmt.Errorf("unsupported scan dest %T", dest)
	}
	return nil
}

// execCall records one Exec invocation.
type execCall struct {
	sql  string
	args []any
}

// poolStub implements postgres.PgxPool. Exec returns scripted command tags
// in order; Query and QueryRow serve fixed stubs. Shared across the repo
// test files.
type poolStub struct {
	execTags []pgconn.CommandTag
	execErr  error
	execs    []execCall

	row      rowStub
	rows     *rowsStub
	queryErr error
	queries  []execCall

	tx       *txStub
	beginErr error
}

func tag(s string) pgconn.CommandTag { return pgconn.NewCommandTag(s) }

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	if p.execErr != nil {
		return pgconn.CommandTag{}, p.execErr
	}
	if len(p.execTags) == 0 {
		return tag("INSERT 0 1"), nil
	}
	t := p.execTags[0]
	p.execTags = p.execTags[1:]
	return t, nil
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.queries = append(p.queries, execCall{sql: sql, args: args})
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.queries = append(p.queries, execCall{sql: sql, args: args})
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.rows == nil {
		return &rowsStub{}, nil
	}
	return p.rows, nil
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	if p.tx == nil {
		p.tx = &txStub{}
	}
	return p.tx, nil
}

// txStub implements pgx.Tx for the batch-insert path.
type txStub struct {
	execTags   []pgconn.CommandTag
	execErr    error
	execs      []execCall
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *txStub) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *txStub) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *txStub) Rollback(context.Context) error { t.rolledBack = true; return nil }
func (t *txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *txStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *txStub) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *txStub) Query(context.Context, string, ...any) (pgx.Rows, error) { return &rowsStub{}, nil }
func (t *txStub) QueryRow(context.Context, string, ...any) pgx.Row        { return rowStub{} }
func (t *txStub) Conn() *pgx.Conn                                         { return nil }

func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	if len(t.execTags) == 0 {
		return tag("INSERT 0 1"), nil
	}
	tg := t.execTags[0]
	t.execTags = t.execTags[1:]
	return tg, nil
}
