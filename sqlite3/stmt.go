// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

/*
#include "shim.h"
*/
import "C"

import (
	"io"
	"runtime"
	"sort"
	"strconv"
	"unsafe"
)

// State is the position of a prepared statement in its life cycle.
type State int

const (
	Compiled State = iota // Initial state; parameters may be bound
	Active                // At least one row was returned, more may follow
	Done                  // The statement ran to completion
	Closed                // Terminal; the native handle was released
)

func (st State) String() string {
	switch st {
	case Compiled:
		return "compiled"
	case Active:
		return "active"
	case Done:
		return "done"
	case Closed:
		return "closed"
	}
	return "State(" + strconv.Itoa(int(st)) + ")"
}

// NamedArgs is a name/value map of arguments passed to a prepared statement
// that uses ?NNN, :AAA, @AAA, and/or $AAA parameter formats. Names without one
// of these prefixes refer to the :AAA form. Values that are not referenced by
// the statement are an error for Stmt.Bind and ignored by Conn.Exec.
type NamedArgs map[string]interface{}

// Stmt is a prepared statement handle.
// [http://www.sqlite.org/c3ref/stmt.html]
type Stmt struct {
	Tail string // Uncompiled portion of the SQL string passed to Conn.Prepare

	conn *Conn
	stmt *C.sqlite3_stmt

	state   State
	pending bool     // Last step returned BUSY or LOCKED and may be retried
	err     error    // Hard error returned by the last step, cleared by Reset
	lastRC  C.int    // Result code of the last step
	text    string   // SQL text used to create this statement (minus the Tail)
	textEnc Encoding // Encoding of TEXT values returned by Step

	nVars int // Number of bound parameters (or maximum ?NNN value)
	nCols int // Number of columns in each row

	varNames   []string // Names of bound parameters ("" for anonymous ones)
	colNames   []string // Names of columns in the result set
	colDecls   []string // Column type declarations, as written
	colDBs     []string // Database names of column origins
	colTables  []string // Table names of column origins
	colOrigins []string // Column names of column origins
}

// newStmt creates a new prepared statement.
func newStmt(c *Conn, sql string) (*Stmt, error) {
	zsql := sql + "\x00"

	var stmt *C.sqlite3_stmt
	var tail *C.char
	if rc := C.sqlite3_prepare_v2(c.db, cStr(zsql), -1, &stmt, &tail); rc != OK {
		return nil, libErr(rc, c.db)
	}

	// stmt will be nil if sql contained only comments or whitespace. s.Tail may
	// be useful to the caller, so s is still returned without an error.
	s := &Stmt{conn: c, stmt: stmt, text: sql, textEnc: c.opts.TextEncoding.resolve()}
	if tail != nil {
		// tail is a pointer into zsql, so the remainder can be sliced out of
		// sql without another allocation.
		off := int(uintptr(unsafe.Pointer(tail)) - uintptr(unsafe.Pointer(unsafe.StringData(zsql))))
		if off >= 0 && off < len(sql) {
			s.text, s.Tail = sql[:off], sql[off:]
		}
	}
	if stmt == nil {
		s.state = Done
		return s, nil
	}
	s.nVars = int(C.sqlite3_bind_parameter_count(stmt))
	s.nCols = int(C.sqlite3_column_count(stmt))
	runtime.SetFinalizer(s, func(s *Stmt) {
		s.conn.log.WithField("sql", s.String()).Warn("statement was not closed")
		s.Close()
	})
	return s, nil
}

// check returns a lifecycle error if the statement was closed.
func (s *Stmt) check(op string) error {
	if s.state == Closed {
		return lifecycleErr(op, ErrStmtClosed)
	}
	return nil
}

// Close releases all resources associated with the prepared statement. This
// method can be called at any point in the statement's life cycle, but only
// once. Errors already reported by Step are not reported again.
// [http://www.sqlite.org/c3ref/finalize.html]
func (s *Stmt) Close() error {
	if err := s.check("close"); err != nil {
		return err
	}
	stmt := s.stmt
	// Tail, conn, and text keep their current values
	s.stmt = nil
	s.state = Closed
	s.err = nil
	s.varNames = nil
	s.colNames = nil
	s.colDecls = nil
	s.colDBs = nil
	s.colTables = nil
	s.colOrigins = nil
	runtime.SetFinalizer(s, nil)
	if stmt != nil {
		if rc := C.sqlite3_finalize(stmt); rc != OK && rc != s.lastRC {
			return libErr(rc, s.conn.db)
		}
	}
	return nil
}

// Conn returns the connection that that created this prepared statement.
func (s *Stmt) Conn() *Conn {
	return s.conn
}

// State returns the current life cycle state.
func (s *Stmt) State() State {
	return s.state
}

// Valid returns true if the prepared statement has a native handle. A new
// prepared statement may not be valid if the SQL string contained nothing but
// comments or whitespace. Such statements are always Done.
func (s *Stmt) Valid() bool {
	return s.stmt != nil
}

// Busy returns true if the prepared statement is in the middle of execution
// with a row available.
func (s *Stmt) Busy() bool {
	return s.state == Active
}

// ReadOnly returns true if the prepared statement makes no direct changes to
// the content of the database file.
// [http://www.sqlite.org/c3ref/stmt_readonly.html]
func (s *Stmt) ReadOnly() bool {
	return s.stmt == nil || C.sqlite3_stmt_readonly(s.stmt) != 0
}

// String implements fmt.Stringer by returning the SQL text that was used to
// create this prepared statement.
// [http://www.sqlite.org/c3ref/sql.html]
func (s *Stmt) String() string {
	if s.text == "" && s.stmt != nil {
		if text := C.sqlite3_sql(s.stmt); text != nil {
			s.text = C.GoString(text)
		}
	}
	return s.text
}

// SetTextEncoding selects the encoding of TEXT values returned by Step. The
// default is taken from the connection options.
func (s *Stmt) SetTextEncoding(enc Encoding) error {
	if err := s.check("set text encoding"); err != nil {
		return err
	}
	s.textEnc = enc.resolve()
	return nil
}

// BindParameterCount returns the number of bound parameters in the prepared
// statement (or the largest ?NNN index).
// [http://www.sqlite.org/c3ref/bind_parameter_count.html]
func (s *Stmt) BindParameterCount() (int, error) {
	if err := s.check("bind parameter count"); err != nil {
		return 0, err
	}
	return s.nVars, nil
}

// BindParameterIndex returns the index (starting at 1) of the parameter with
// the given name. A name without a parameter prefix refers to the :AAA form.
// Zero is returned if the statement has no such parameter.
// [http://www.sqlite.org/c3ref/bind_parameter_index.html]
func (s *Stmt) BindParameterIndex(name string) (int, error) {
	if err := s.check("bind parameter index"); err != nil {
		return 0, err
	}
	return s.paramIndex(name), nil
}

func (s *Stmt) paramIndex(name string) int {
	if s.stmt == nil || name == "" {
		return 0
	}
	switch name[0] {
	case ':', '@', '$', '?':
	default:
		name = ":" + name
	}
	name += "\x00"
	return int(C.sqlite3_bind_parameter_index(s.stmt, cStr(name)))
}

// Params returns the names of bound parameters in the prepared statement.
// Anonymous parameters have empty names.
// [http://www.sqlite.org/c3ref/bind_parameter_name.html]
func (s *Stmt) Params() ([]string, error) {
	if err := s.check("params"); err != nil {
		return nil, err
	}
	if s.varNames == nil && s.nVars > 0 {
		names := make([]string, s.nVars)
		for i := range names {
			names[i] = optStr(C.sqlite3_bind_parameter_name(s.stmt, C.int(i+1)))
		}
		s.varNames = names
	}
	return s.varNames, nil
}

// binding is a resolved parameter index/value pair.
type binding struct {
	i int
	v Value
}

// Bind binds args to the statement parameters. Unnamed arguments are assigned
// to indexes 1, 2, 3, and so on. NamedArgs (or map[string]interface{}) values
// are assigned by name. Every argument is resolved before the first value is
// handed to SQLite, so an unknown name or unsupported type leaves the existing
// bindings untouched. Bind is only permitted before the first Step or after
// Reset.
// [http://www.sqlite.org/c3ref/bind_blob.html]
func (s *Stmt) Bind(args ...interface{}) error {
	if err := s.check("bind"); err != nil {
		return err
	}
	if (s.state != Compiled || s.pending || s.err != nil) && s.stmt != nil {
		return lifecycleErr("bind", ErrNotReset)
	}
	binds, err := s.resolve(args, false)
	if err != nil {
		return err
	}
	return s.apply(binds)
}

// resolve converts args into bindings without calling into SQLite. If lenient
// is true, names unknown to the statement are skipped.
func (s *Stmt) resolve(args []interface{}, lenient bool) ([]binding, error) {
	var binds []binding
	pos := 1
	for _, arg := range args {
		var named map[string]interface{}
		switch arg := arg.(type) {
		case NamedArgs:
			named = arg
		case map[string]interface{}:
			named = arg
		default:
			if pos > s.nVars {
				return nil, pkgErr(RANGE, "bind index %d out of range (%d parameter(s))",
					pos, s.nVars)
			}
			v, err := ValueOf(arg)
			if err != nil {
				err.(*TypeError).Where = "parameter " + strconv.Itoa(pos)
				return nil, err
			}
			binds = append(binds, binding{pos, v})
			pos++
			continue
		}
		names := make([]string, 0, len(named))
		for name := range named {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			i := s.paramIndex(name)
			if i == 0 {
				if lenient {
					continue
				}
				return nil, lifecycleErr("bind "+strconv.Quote(name), ErrUnknownParameter)
			}
			v, err := ValueOf(named[name])
			if err != nil {
				err.(*TypeError).Where = name
				return nil, err
			}
			binds = append(binds, binding{i, v})
		}
	}
	return binds, nil
}

// apply hands resolved bindings to SQLite.
func (s *Stmt) apply(binds []binding) error {
	for _, b := range binds {
		if rc := b.v.bind(s.stmt, C.int(b.i)); rc != OK {
			return libErr(rc, s.conn.db)
		}
	}
	return nil
}

// ClearBindings resets all bound parameters to NULL.
// [http://www.sqlite.org/c3ref/clear_bindings.html]
func (s *Stmt) ClearBindings() error {
	if err := s.check("clear bindings"); err != nil {
		return err
	}
	if s.stmt != nil && s.nVars > 0 {
		if rc := C.sqlite3_clear_bindings(s.stmt); rc != OK {
			return libErr(rc, s.conn.db)
		}
	}
	return nil
}

// Step evaluates the next step in the statement's program. It returns the
// decoded row when one is available. io.EOF is returned once the statement is
// Done, without calling into SQLite again, until the statement is reset.
//
// BUSY and LOCKED errors leave the state unchanged and the call may be
// retried, but parameters cannot be bound until Reset. Any other error is also returned by every following Step until
// Reset is called.
// [http://www.sqlite.org/c3ref/step.html]
func (s *Stmt) Step() ([]Value, error) {
	if err := s.check("step"); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.state == Done || s.stmt == nil {
		s.state = Done
		return nil, io.EOF
	}
	rc := C.sqlite3_step(s.stmt)
	s.lastRC = rc
	s.pending = false
	switch rc {
	case ROW:
		s.state = Active
		return s.row(), nil
	case DONE:
		s.state = Done
		return nil, io.EOF
	}
	err := libErr(rc, s.conn.db)
	if prim := rc & 0xff; prim == BUSY || prim == LOCKED {
		// The program has started, so parameters can no longer be bound
		s.pending = true
	} else {
		s.err = err
	}
	return nil, err
}

// row decodes all columns of the current row.
func (s *Stmt) row() []Value {
	vals := make([]Value, s.nCols)
	for i := range vals {
		vals[i] = columnValue(s.stmt, C.int(i), s.textEnc)
	}
	return vals
}

// Reset returns the prepared statement to the Compiled state, ready to be
// re-executed. Bindings are kept; use ClearBindings to remove them. An error
// from the previous step is not reported again.
// [http://www.sqlite.org/c3ref/reset.html]
func (s *Stmt) Reset() error {
	if err := s.check("reset"); err != nil {
		return err
	}
	if s.stmt != nil {
		// With the v2 interface, reset returns the same error code as the last
		// step, which was already reported.
		C.sqlite3_reset(s.stmt)
	}
	s.err = nil
	s.pending = false
	s.state = Compiled
	return nil
}

// Execute resets the statement if needed, binds args, and returns a cursor
// over its rows. Statements that return no columns are stepped once, so
// Execute runs DML and DDL immediately.
func (s *Stmt) Execute(args ...interface{}) (*ResultSet, error) {
	if err := s.check("execute"); err != nil {
		return nil, err
	}
	if s.state != Compiled || s.pending || s.err != nil {
		s.Reset()
	}
	if err := s.Bind(args...); err != nil {
		return nil, err
	}
	rs := &ResultSet{stmt: s}
	if s.nCols == 0 {
		if _, err := s.Step(); err != nil && err != io.EOF {
			return nil, err
		}
	}
	return rs, nil
}

// Exec runs the statement to completion with args, discarding any rows.
func (s *Stmt) Exec(args ...interface{}) error {
	if _, err := s.Execute(args...); err != nil {
		return err
	}
	return s.drain()
}

// drain steps until the statement is Done.
func (s *Stmt) drain() error {
	for {
		if _, err := s.Step(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// ColumnCount returns the number of columns produced by the prepared
// statement.
// [http://www.sqlite.org/c3ref/column_count.html]
func (s *Stmt) ColumnCount() (int, error) {
	if err := s.check("column count"); err != nil {
		return 0, err
	}
	return s.nCols, nil
}

// colFunc returns a per-column string property of stmt.
type colFunc func(stmt *C.sqlite3_stmt, i C.int) *C.char

// meta memoizes the property f for all columns in *cache.
func (s *Stmt) meta(op string, cache *[]string, f colFunc) ([]string, error) {
	if err := s.check(op); err != nil {
		return nil, err
	}
	if *cache == nil && s.nCols > 0 {
		vals := make([]string, s.nCols)
		for i := range vals {
			vals[i] = optStr(f(s.stmt, C.int(i)))
		}
		*cache = vals
	}
	return *cache, nil
}

// metaAt returns the memoized property of column i.
func (s *Stmt) metaAt(op string, i int, cache *[]string, f colFunc) (string, error) {
	vals, err := s.meta(op, cache, f)
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(vals) {
		return "", pkgErr(RANGE, "column index %d out of range (%d column(s))", i, s.nCols)
	}
	return vals[i], nil
}

func columnName(stmt *C.sqlite3_stmt, i C.int) *C.char {
	return C.sqlite3_column_name(stmt, i)
}

func columnDecltype(stmt *C.sqlite3_stmt, i C.int) *C.char {
	return C.sqlite3_column_decltype(stmt, i)
}

func columnDatabaseName(stmt *C.sqlite3_stmt, i C.int) *C.char {
	return C.sqlite3_column_database_name(stmt, i)
}

func columnTableName(stmt *C.sqlite3_stmt, i C.int) *C.char {
	return C.sqlite3_column_table_name(stmt, i)
}

func columnOriginName(stmt *C.sqlite3_stmt, i C.int) *C.char {
	return C.sqlite3_column_origin_name(stmt, i)
}

// Columns returns the names of columns produced by the prepared statement.
// The returned slice must not be modified.
// [http://www.sqlite.org/c3ref/column_name.html]
func (s *Stmt) Columns() ([]string, error) {
	return s.meta("columns", &s.colNames, columnName)
}

// ColumnName returns the name of column i (starting at 0).
func (s *Stmt) ColumnName(i int) (string, error) {
	return s.metaAt("column name", i, &s.colNames, columnName)
}

// DeclTypes returns the type declarations of columns produced by the prepared
// statement, as written in the table definition. Expressions have an empty
// declaration.
// [http://www.sqlite.org/c3ref/column_decltype.html]
func (s *Stmt) DeclTypes() ([]string, error) {
	return s.meta("decl types", &s.colDecls, columnDecltype)
}

// DeclType returns the type declaration of column i.
func (s *Stmt) DeclType(i int) (string, error) {
	return s.metaAt("decl type", i, &s.colDecls, columnDecltype)
}

// DatabaseName returns the name of the database ("main", "temp", or an
// attached name) that column i originates from.
// [http://www.sqlite.org/c3ref/column_database_name.html]
func (s *Stmt) DatabaseName(i int) (string, error) {
	return s.metaAt("database name", i, &s.colDBs, columnDatabaseName)
}

// TableName returns the name of the table that column i originates from.
func (s *Stmt) TableName(i int) (string, error) {
	return s.metaAt("table name", i, &s.colTables, columnTableName)
}

// OriginName returns the table column name that column i originates from.
func (s *Stmt) OriginName(i int) (string, error) {
	return s.metaAt("origin name", i, &s.colOrigins, columnOriginName)
}

// ColumnType returns the storage class of column i in the current row.
// [http://www.sqlite.org/c3ref/column_blob.html]
func (s *Stmt) ColumnType(i int) (Kind, error) {
	if err := s.column("column type", i); err != nil {
		return 0, err
	}
	return Kind(C.sqlite3_column_type(s.stmt, C.int(i))), nil
}

// ColumnValue returns the value of column i in the current row.
func (s *Stmt) ColumnValue(i int) (Value, error) {
	if err := s.column("column value", i); err != nil {
		return Value{}, err
	}
	return columnValue(s.stmt, C.int(i), s.textEnc), nil
}

// DataTypes returns the storage classes of the columns in the current row.
// [http://www.sqlite.org/c3ref/column_blob.html]
func (s *Stmt) DataTypes() ([]Kind, error) {
	if err := s.check("data types"); err != nil {
		return nil, err
	}
	if s.state != Active {
		return nil, pkgErr(MISUSE, "data types: no row available")
	}
	kinds := make([]Kind, s.nCols)
	for i := range kinds {
		kinds[i] = Kind(C.sqlite3_column_type(s.stmt, C.int(i)))
	}
	return kinds, nil
}

// Scan retrieves data from the current row, storing successive column values
// into successive arguments. The same row may be scanned multiple times. Nil
// arguments are silently skipped. io.EOF is returned if no row is available.
// [http://www.sqlite.org/c3ref/column_blob.html]
func (s *Stmt) Scan(dst ...interface{}) error {
	if err := s.check("scan"); err != nil {
		return err
	}
	if s.state != Active {
		return io.EOF
	}
	if len(dst) > s.nCols {
		return pkgErr(MISUSE, "cannot assign %d value(s) from %d column(s)",
			len(dst), s.nCols)
	}
	for i, v := range dst {
		if v == nil {
			continue
		}
		if err := columnValue(s.stmt, C.int(i), s.textEnc).AssignTo(v); err != nil {
			err.(*TypeError).Where = "column " + strconv.Itoa(i)
			return err
		}
	}
	return nil
}

// column verifies that column i of the current row can be read.
func (s *Stmt) column(op string, i int) error {
	if err := s.check(op); err != nil {
		return err
	}
	if s.state != Active {
		return pkgErr(MISUSE, "%s: no row available", op)
	}
	if i < 0 || i >= s.nCols {
		return pkgErr(RANGE, "column index %d out of range (%d column(s))", i, s.nCols)
	}
	return nil
}
