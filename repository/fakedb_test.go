package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

// fakeResult is what the fake connection answers for one named query
type fakeResult struct {
	columns []string
	rows    [][]driver.Value
	err     error
}

type fakeCall struct {
	name  string
	query string
	args  []driver.Value
}

// fakeQuerier implements interfaces.Querier over a database/sql pool backed by
// an in-memory driver. Each named query returns its canned result.
type fakeQuerier struct {
	db   *sql.DB
	conn *fakeConn

	mu      sync.Mutex
	results map[string]fakeResult
	calls   []fakeCall
	pending string
}

func newFakeQuerier(results map[string]fakeResult) *fakeQuerier {
	q := &fakeQuerier{results: results}
	q.conn = &fakeConn{owner: q}
	q.db = sql.OpenDB(&fakeConnector{conn: q.conn})
	q.db.SetMaxOpenConns(1)
	return q
}

func (q *fakeQuerier) Query(ctx context.Context, name, query string, args ...any) (*sql.Rows, error) {
	q.mu.Lock()
	q.pending = name
	q.mu.Unlock()
	return q.db.QueryContext(ctx, query, args...)
}

func (q *fakeQuerier) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

func (q *fakeQuerier) callsNamed(name string) []fakeCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []fakeCall
	for _, c := range q.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type fakeConnector struct {
	conn *fakeConn
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }

func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("fake driver is only reachable through its connector")
}

type fakeConn struct {
	owner *fakeQuerier
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *fakeConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q := c.owner
	q.mu.Lock()
	defer q.mu.Unlock()

	values := make([]driver.Value, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	q.calls = append(q.calls, fakeCall{name: q.pending, query: query, args: values})

	res, ok := q.results[q.pending]
	if !ok {
		return &fakeRows{}, nil
	}
	if res.err != nil {
		return nil, res.err
	}
	return &fakeRows{columns: res.columns, rows: res.rows}, nil
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *fakeRows) Columns() []string { return r.columns }

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}
