// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// register makes the database/sql driver available under name.
func register(name string) {
	defer func() {
		// Don't panic if another package registered the same name first
		recover()
	}()
	sql.Register(name, Driver{})
}

// Driver implements the database/sql/driver interfaces. The data source name is
// passed to Open, minus the following query parameters, which are consumed by
// the driver:
//
//	_busy_timeout=<ms>  enable the built-in busy handler
//	_mode=ro            open the database read-only
//
// Other parameters are left in place and interpreted by SQLite for file: URIs.
type Driver struct{}

// Open opens a new connection.
func (Driver) Open(dsn string) (driver.Conn, error) {
	name, opts, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	c, err := Open(name, opts...)
	if err != nil {
		return nil, err
	}
	return &conn{c}, nil
}

// parseDSN splits driver parameters off dsn.
func parseDSN(dsn string) (string, []Option, error) {
	i := strings.IndexByte(dsn, '?')
	if i < 0 {
		return dsn, nil, nil
	}
	q, err := url.ParseQuery(dsn[i+1:])
	if err != nil {
		return "", nil, errors.Wrapf(err, "sqlite3: invalid data source name %q", dsn)
	}
	var opts []Option
	rest := url.Values{}
	for k, vs := range q {
		v := vs[len(vs)-1]
		switch k {
		case "_busy_timeout":
			ms, err := strconv.Atoi(v)
			if err != nil {
				return "", nil, errors.Wrapf(err, "sqlite3: invalid _busy_timeout %q", v)
			}
			opts = append(opts, WithBusyTimeout(time.Duration(ms)*time.Millisecond))
		case "_mode":
			switch v {
			case "ro":
				opts = append(opts, ReadOnly())
			case "rw", "rwc":
			default:
				return "", nil, errors.Errorf("sqlite3: invalid _mode %q", v)
			}
		default:
			rest[k] = vs
		}
	}
	name := dsn[:i]
	if len(rest) > 0 {
		name += "?" + rest.Encode()
	}
	return name, opts, nil
}

// conn implements driver.Conn.
type conn struct {
	c *Conn
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	s, err := c.c.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &stmt{c, s}, nil
}

func (c *conn) Close() error {
	return c.c.Close()
}

func (c *conn) Begin() (driver.Tx, error) {
	if err := c.c.Begin(); err != nil {
		return nil, err
	}
	return tx{c.c}, nil
}

// watch interrupts the connection if ctx is cancelled before the returned
// function is called. Once stop returns, no interrupt is in flight and none
// will be issued. A context that is already done is reported without touching
// the connection.
func (c *conn) watch(ctx context.Context) (stop func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ctx.Done() == nil {
		return func() {}, nil
	}
	var mu sync.Mutex
	active := true
	unregister := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if active {
			c.c.Interrupt()
		}
	})
	return func() {
		unregister()
		// Waits for an interrupt that already started
		mu.Lock()
		active = false
		mu.Unlock()
	}, nil
}

// ctxErr prefers the context error over the INTERRUPT error it caused.
func ctxErr(ctx context.Context, err error) error {
	if e, ok := err.(*Error); ok && e.Kind() == InterruptError && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// tx implements driver.Tx.
type tx struct {
	c *Conn
}

func (t tx) Commit() error {
	return t.c.Commit()
}

func (t tx) Rollback() error {
	return t.c.Rollback()
}

// stmt implements driver.Stmt.
type stmt struct {
	c *conn
	s *Stmt
}

func (s *stmt) Close() error {
	return s.s.Close()
}

func (s *stmt) NumInput() int {
	return s.s.nVars
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	stop, err := s.c.watch(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()
	if err := s.s.Exec(bindArgs(args)...); err != nil {
		return nil, ctxErr(ctx, err)
	}
	id, _ := s.c.c.LastInsertRowID()
	n, _ := s.c.c.Changes()
	return result{id, int64(n)}, nil
}

// QueryContext binds args and returns rows that watch ctx during each call to
// Next, where most of the work happens.
func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	stop, err := s.c.watch(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()
	if _, err := s.s.Execute(bindArgs(args)...); err != nil {
		return nil, ctxErr(ctx, err)
	}
	return &rows{c: s.c, s: s.s, ctx: ctx}, nil
}

// named converts positional driver values into NamedValues.
func named(args []driver.Value) []driver.NamedValue {
	nv := make([]driver.NamedValue, len(args))
	for i, v := range args {
		nv[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return nv
}

// bindArgs converts driver arguments into Stmt.Bind arguments. time.Time
// values are stored as Unix timestamps.
func bindArgs(args []driver.NamedValue) []interface{} {
	var vals []interface{}
	var names NamedArgs
	for _, arg := range args {
		v := arg.Value
		if t, ok := v.(time.Time); ok {
			v = t.Unix()
		}
		if arg.Name != "" {
			if names == nil {
				names = make(NamedArgs)
			}
			names[arg.Name] = v
		} else {
			vals = append(vals, v)
		}
	}
	if names != nil {
		vals = append(vals, names)
	}
	return vals
}

// result implements driver.Result.
type result struct {
	id      int64
	changes int64
}

func (r result) LastInsertId() (int64, error) {
	return r.id, nil
}

func (r result) RowsAffected() (int64, error) {
	return r.changes, nil
}

// rows implements driver.Rows.
type rows struct {
	c   *conn
	s   *Stmt
	ctx context.Context
}

func (r *rows) Columns() []string {
	return r.s.colNamesOrNil()
}

// Close rewinds the statement, which remains owned by the driver.Stmt.
func (r *rows) Close() error {
	if r.s.state == Closed {
		return nil
	}
	return r.s.Reset()
}

func (r *rows) Next(dest []driver.Value) error {
	stop, err := r.c.watch(r.ctx)
	if err != nil {
		return err
	}
	vals, err := r.s.Step()
	stop()
	if err == io.EOF {
		return err
	} else if err != nil {
		return ctxErr(r.ctx, err)
	}
	for i, v := range vals {
		if i >= len(dest) {
			break
		}
		switch v.Kind() {
		case KindText:
			dest[i] = v.Text()
		case KindBlob:
			dest[i] = v.Bytes()
		default:
			dest[i] = v.Interface()
		}
	}
	return nil
}

var (
	_ driver.StmtExecContext  = (*stmt)(nil)
	_ driver.StmtQueryContext = (*stmt)(nil)
)
