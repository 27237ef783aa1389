// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import "io"

// Record is a single result row, either a Row or a RowMap.
type Record interface {
	// Len returns the number of values.
	Len() int

	// Keys returns the column names in result order.
	Keys() []string

	// Get returns the value of the named column.
	Get(name string) (Value, bool)
}

// Row is a result row as an ordered sequence of values, together with the
// column names and declared types of the statement that produced it.
type Row struct {
	Values []Value
	Fields []string
	Types  []string
}

// Len returns the number of values in the row.
func (r Row) Len() int { return len(r.Values) }

// Keys returns the column names.
func (r Row) Keys() []string { return r.Fields }

// At returns the value of column i, or NULL if i is out of range.
func (r Row) At(i int) Value {
	if i < 0 || i >= len(r.Values) {
		return NullValue()
	}
	return r.Values[i]
}

// Get returns the value of the named column. If several columns share the
// name, the last one is returned.
func (r Row) Get(name string) (Value, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i] == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// Map returns the row as a RowMap.
func (r Row) Map() RowMap {
	m := RowMap{vals: make(map[string]Value, len(r.Values))}
	for i, v := range r.Values {
		if i < len(r.Fields) {
			m.set(r.Fields[i], v)
		}
	}
	return m
}

// RowMap is a result row as a mapping from column names to values. Keys keep
// the column order of the result set. When several columns share a name, the
// last value wins and the key keeps its first position.
type RowMap struct {
	keys []string
	vals map[string]Value
}

func (m *RowMap) set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Len returns the number of distinct column names.
func (m RowMap) Len() int { return len(m.keys) }

// Keys returns the column names in result order.
func (m RowMap) Keys() []string { return m.keys }

// Get returns the value of the named column.
func (m RowMap) Get(name string) (Value, bool) {
	v, ok := m.vals[name]
	return v, ok
}

// ResultSet is a cursor over the rows produced by a prepared statement. It
// does not own the statement unless Close is called.
type ResultSet struct {
	stmt *Stmt
}

// Stmt returns the underlying statement.
func (rs *ResultSet) Stmt() *Stmt {
	return rs.stmt
}

// Next returns the next row. io.EOF is returned once all rows were consumed,
// and on every following call until Reset.
func (rs *ResultSet) Next() (Row, error) {
	if err := rs.stmt.check("next"); err != nil {
		return Row{}, err
	}
	vals, err := rs.stmt.Step()
	if err != nil {
		return Row{}, err
	}
	return Row{Values: vals, Fields: rs.stmt.colNamesOrNil(), Types: rs.stmt.colDeclsOrNil()}, nil
}

// NextMap is like Next, but returns the row as a RowMap.
func (rs *ResultSet) NextMap() (RowMap, error) {
	row, err := rs.Next()
	if err != nil {
		return RowMap{}, err
	}
	return row.Map(), nil
}

// Each calls fn for every remaining row. Rows are passed as RowMap values if
// the connection was opened with ResultsAsMap, otherwise as Row values.
// Iteration stops at the first error returned by fn.
func (rs *ResultSet) Each(fn func(Record) error) error {
	asMap := rs.stmt.conn.opts.ResultsAsMap
	for {
		row, err := rs.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		var rec Record = row
		if asMap {
			rec = row.Map()
		}
		if err = fn(rec); err != nil {
			return err
		}
	}
}

// Reset rewinds the cursor, clears all bindings, and binds args.
func (rs *ResultSet) Reset(args ...interface{}) error {
	if err := rs.stmt.Reset(); err != nil {
		return err
	}
	if err := rs.stmt.ClearBindings(); err != nil {
		return err
	}
	return rs.stmt.Bind(args...)
}

// EOF returns true once all rows were consumed.
func (rs *ResultSet) EOF() bool {
	return rs.stmt.state == Done
}

// Columns returns the column names of the result set.
func (rs *ResultSet) Columns() ([]string, error) {
	return rs.stmt.Columns()
}

// Types returns the declared column types of the result set.
func (rs *ResultSet) Types() ([]string, error) {
	return rs.stmt.DeclTypes()
}

// Close closes the underlying statement.
func (rs *ResultSet) Close() error {
	return rs.stmt.Close()
}

// Closed returns true if the underlying statement was closed.
func (rs *ResultSet) Closed() bool {
	return rs.stmt.state == Closed
}

func (s *Stmt) colNamesOrNil() []string {
	names, _ := s.Columns()
	return names
}

func (s *Stmt) colDeclsOrNil() []string {
	decls, _ := s.DeclTypes()
	return decls
}
