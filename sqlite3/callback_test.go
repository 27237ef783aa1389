// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3_test

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/threez/sqlite3-fiddle/sqlite3"
)

func TestFunction(t *testing.T) {
	c := openConn(t, ":memory:")
	defer closeConn(t, c)

	shout := func(args []Value) (Value, error) {
		switch v := args[0]; v.Kind() {
		case KindText:
			return TextValue(strings.ToUpper(v.Text())), nil
		case KindBlob:
			b := append([]byte{}, v.Bytes()...)
			for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
				b[i], b[j] = b[j], b[i]
			}
			return BlobValue(b), nil
		case KindInteger:
			return IntegerValue(v.Int64() * 10), nil
		default:
			return v, nil
		}
	}
	require.NoError(t, c.CreateFunction("shout", 1, shout, Deterministic()))

	row, err := c.FirstRow(`SELECT shout('abc'), shout(x'00ff'), shout(4), shout(0.5), shout(NULL)`)
	require.NoError(t, err)
	assert.Equal(t, "ABC", row.At(0).Text())
	assert.Equal(t, []byte{0xff, 0}, row.At(1).Bytes())
	assert.Equal(t, int64(40), row.At(2).Int64())
	assert.Equal(t, 0.5, row.At(3).Float64())
	assert.True(t, row.At(4).IsNull())

	// Variadic functions see every argument
	require.NoError(t, c.CreateFunction("nargs", -1, func(args []Value) (Value, error) {
		return IntegerValue(int64(len(args))), nil
	}))
	v, err := c.FirstValue(`SELECT nargs() + nargs(1, 2, 3)`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Int64())

	// Wrong number of arguments is a compile error
	_, err = c.Prepare(`SELECT shout(1, 2)`)
	assert.Equal(t, SQLError, errKind(err))
	assert.Contains(t, err.Error(), "wrong number of arguments")

	// Removal
	require.NoError(t, c.CreateFunction("shout", 1, nil))
	_, err = c.Prepare(`SELECT shout('abc')`)
	assert.Contains(t, err.Error(), "no such function")

	// Invalid argument counts are rejected before SQLite sees them
	assert.Equal(t, MisuseError, errKind(c.CreateFunction("f", 128, shout)))
	assert.Equal(t, MisuseError, errKind(c.CreateFunction("f", -2, shout)))
}

func TestFunctionEncoding(t *testing.T) {
	c := openConn(t, ":memory:")
	defer closeConn(t, c)

	var got Encoding
	echo := func(args []Value) (Value, error) {
		got = args[0].Encoding()
		return args[0].In(UTF16BE), nil
	}
	require.NoError(t, c.CreateFunction("echo", 1, echo, WithEncoding(UTF16LE)))

	v, err := c.FirstValue(`SELECT echo('grüße')`)
	require.NoError(t, err)
	assert.Equal(t, UTF16LE, got)
	assert.Equal(t, UTF8, v.Encoding())
	assert.Equal(t, "grüße", v.Text())
}

func TestFunctionErrors(t *testing.T) {
	logger, hook := quietLogger()
	c := openConn(t, ":memory:", WithLogger(logger))
	defer closeConn(t, c)

	check := func(args []Value) (Value, error) {
		switch args[0].Int64() {
		case 1:
			return Value{}, errors.New("boom")
		case 2:
			return Value{}, NewError(CONSTRAINT, "nope")
		case 3:
			panic("kaboom")
		}
		return args[0], nil
	}
	require.NoError(t, c.CreateFunction("check", 1, check))

	s, err := c.Prepare(`SELECT check(?)`)
	require.NoError(t, err)
	defer closeStmt(t, s)

	run := func(arg int) error {
		require.NoError(t, s.Reset())
		require.NoError(t, s.Bind(arg))
		_, err := s.Step()
		return err
	}

	// Plain errors become SQL errors with the same message
	err = run(1)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, SQLError, e.Kind())
	assert.Equal(t, "boom", e.Msg())

	// *Error also sets the result code
	err = run(2)
	require.True(t, errors.As(err, &e))
	assert.Equal(t, CONSTRAINT, e.Code())
	assert.Equal(t, "nope", e.Msg())

	// Panics are recovered and logged
	err = run(3)
	require.True(t, errors.As(err, &e))
	assert.Equal(t, SQLError, e.Kind())
	assert.Equal(t, "panic in check: kaboom", e.Msg())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "check", hook.LastEntry().Data["callback"])

	// The statement and the connection remain usable
	require.NoError(t, run(7))
	require.NoError(t, s.Reset())
	vals, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, int64(7), vals[0].Int64())
	v, err := c.FirstValue(`SELECT check(8)`)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v.Int64())
}

// lenSum is an aggregate that sums the lengths of its text arguments and
// records its calls in a shared log.
type lenSum struct {
	id    int
	log   *[]string
	total int64
}

func (a *lenSum) Step(args []Value) error {
	*a.log = append(*a.log, fmt.Sprintf("step#%d", a.id))
	if args[0].Text() == "bad" {
		return errors.New("bad input")
	}
	a.total += int64(len(args[0].Text()))
	return nil
}

func (a *lenSum) Final() (Value, error) {
	*a.log = append(*a.log, fmt.Sprintf("final#%d", a.id))
	return IntegerValue(a.total), nil
}

func TestAggregate(t *testing.T) {
	c := openConn(t, ":memory:")
	defer closeConn(t, c)

	mustExec(t, c, `
		CREATE TABLE words(cat, name);
		INSERT INTO words VALUES('a', 'x');
		INSERT INTO words VALUES('b', 'zzzz');
		INSERT INTO words VALUES('a', 'yy');
	`)

	var log []string
	instances := 0
	factory := func() Aggregate {
		instances++
		return &lenSum{id: instances, log: &log}
	}
	require.NoError(t, c.CreateAggregate("len_sum", 1, factory))

	// One instance per group
	rows, err := c.Execute(`SELECT cat, len_sum(name) FROM words GROUP BY cat ORDER BY cat`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].At(0).Text())
	assert.Equal(t, int64(3), rows[0].At(1).Int64())
	assert.Equal(t, "b", rows[1].At(0).Text())
	assert.Equal(t, int64(4), rows[1].At(1).Int64())
	assert.Equal(t, 2, instances)
	assert.Equal(t, []string{"step#1", "step#1", "final#1", "step#2", "final#2"}, log)

	// An empty group gets a fresh instance without any Step
	log = nil
	v, err := c.FirstValue(`SELECT len_sum(name) FROM words WHERE 0`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Int64())
	assert.Equal(t, 3, instances)
	assert.Equal(t, []string{"final#3"}, log)

	// Step errors abort the query
	mustExec(t, c, `INSERT INTO words VALUES('c', 'bad')`)
	_, err = c.FirstValue(`SELECT len_sum(name) FROM words`)
	assert.Equal(t, SQLError, errKind(err))
	assert.Contains(t, err.Error(), "bad input")

	v, err = c.FirstValue(`SELECT len_sum(name) FROM words WHERE cat = 'a'`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Int64())

	// Removal
	require.NoError(t, c.CreateAggregate("len_sum", 1, nil))
	_, err = c.Prepare(`SELECT len_sum(name) FROM words`)
	assert.Error(t, err)
}

type panicAgg struct{}

func (panicAgg) Step([]Value) error    { return nil }
func (panicAgg) Final() (Value, error) { panic("final") }

func TestAggregatePanic(t *testing.T) {
	logger, hook := quietLogger()
	c := openConn(t, ":memory:", WithLogger(logger))
	defer closeConn(t, c)

	require.NoError(t, c.CreateAggregate("boom", 0, func() Aggregate { return panicAgg{} }))
	_, err := c.FirstValue(`SELECT boom()`)
	assert.Equal(t, SQLError, errKind(err))
	assert.Contains(t, err.Error(), "panic in boom: final")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "boom", hook.LastEntry().Data["callback"])
}

func TestCollation(t *testing.T) {
	logger, hook := quietLogger()
	c := openConn(t, ":memory:", WithLogger(logger))
	defer closeConn(t, c)

	mustExec(t, c, `
		CREATE TABLE x(s);
		INSERT INTO x VALUES('b');
		INSERT INTO x VALUES('a');
		INSERT INTO x VALUES('c');
	`)
	require.NoError(t, c.CreateCollation("reverse", func(a, b string) int {
		return -strings.Compare(a, b)
	}))

	collect := func(sql string) []string {
		rows, err := c.Execute(sql)
		require.NoError(t, err)
		var out []string
		for _, row := range rows {
			out = append(out, row.At(0).Text())
		}
		return out
	}
	assert.Equal(t, []string{"c", "b", "a"}, collect(`SELECT s FROM x ORDER BY s COLLATE reverse`))
	v, err := c.FirstValue(`SELECT 'a' = 'A' COLLATE reverse`)
	require.NoError(t, err)
	assert.False(t, v.Bool())

	// A panicking collation treats everything as equal
	require.NoError(t, c.CreateCollation("reverse", func(a, b string) int {
		panic("collate")
	}))
	assert.Len(t, collect(`SELECT s FROM x ORDER BY s COLLATE reverse`), 3)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "reverse", hook.LastEntry().Data["callback"])

	// Removal
	require.NoError(t, c.CreateCollation("reverse", nil))
	_, err = c.Prepare(`SELECT s FROM x ORDER BY s COLLATE reverse`)
	assert.Contains(t, err.Error(), "no such collation sequence")
}

func TestAuthorizer(t *testing.T) {
	logger, hook := quietLogger()
	c := openConn(t, ":memory:", WithLogger(logger))
	defer closeConn(t, c)

	mustExec(t, c, `CREATE TABLE x(public, secret); INSERT INTO x VALUES(1, 2)`)

	var actions []string
	onSecret := AuthIgnore
	require.NoError(t, c.SetAuthorizer(func(action AuthAction, arg1, arg2, db, trigger string) AuthResult {
		actions = append(actions, action.String())
		switch {
		case action == READ && arg2 == "secret":
			if onSecret == -1 {
				panic("authorizer")
			}
			return onSecret
		case action == DELETE:
			return AuthBool(false)
		}
		return AuthBool(true)
	}))

	// Ignored columns read as NULL
	row, err := c.FirstRow(`SELECT public, secret FROM x`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.At(0).Int64())
	assert.True(t, row.At(1).IsNull())
	assert.Contains(t, actions, "SELECT")
	assert.Contains(t, actions, "READ")

	// Denied statements fail to compile
	_, err = c.Prepare(`DELETE FROM x`)
	assert.Equal(t, AuthorizationError, errKind(err))

	// Unknown results are treated as AuthIgnore
	onSecret = AuthResult(42)
	row, err = c.FirstRow(`SELECT public, secret FROM x`)
	require.NoError(t, err)
	assert.True(t, row.At(1).IsNull())

	// So are panics
	onSecret = -1
	row, err = c.FirstRow(`SELECT public, secret FROM x`)
	require.NoError(t, err)
	assert.True(t, row.At(1).IsNull())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "authorizer", hook.LastEntry().Data["callback"])

	// Removal
	require.NoError(t, c.SetAuthorizer(nil))
	row, err = c.FirstRow(`SELECT public, secret FROM x`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), row.At(1).Int64())
	mustExec(t, c, `DELETE FROM x`)

	assert.Equal(t, "AuthAction(99)", AuthAction(99).String())
}

func TestTracer(t *testing.T) {
	logger, hook := quietLogger()
	c := openConn(t, ":memory:", WithLogger(logger))
	defer closeConn(t, c)
	mustExec(t, c, `CREATE TABLE x(a)`)

	var traced []string
	require.NoError(t, c.SetTracer(func(sql string) {
		traced = append(traced, sql)
	}))
	mustExec(t, c, `INSERT INTO x VALUES(1)`)
	_, err := c.FirstValue(`SELECT a FROM x WHERE a = ?`, 1)
	require.NoError(t, err)
	all := strings.Join(traced, "\n")
	assert.Contains(t, all, "INSERT INTO x VALUES(1)")
	assert.Contains(t, all, "SELECT a FROM x WHERE a = ?")

	// Panics are dropped
	require.NoError(t, c.SetTracer(func(string) { panic("trace") }))
	_, err = c.FirstValue(`SELECT count(*) FROM x`)
	require.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "tracer", hook.LastEntry().Data["callback"])

	// Removal
	require.NoError(t, c.SetTracer(nil))
	n := len(traced)
	_, err = c.FirstValue(`SELECT 'untraced'`)
	require.NoError(t, err)
	assert.Len(t, traced, n)
}

func TestBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.db")
	c1 := openConn(t, path)
	defer closeConn(t, c1)
	logger, hook := quietLogger()
	c2 := openConn(t, path, WithLogger(logger))
	defer closeConn(t, c2)

	mustExec(t, c1, `CREATE TABLE x(a)`)
	mustExec(t, c2, `SELECT * FROM x`)
	s, err := c2.Prepare(`INSERT INTO x VALUES(1)`)
	require.NoError(t, err)
	defer closeStmt(t, s)

	mustExec(t, c1, `BEGIN EXCLUSIVE`)

	// BUSY leaves the statement where it was
	_, err = s.Step()
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, BusyError, e.Kind())
	assert.True(t, e.Temporary())
	assert.Equal(t, Compiled, s.State())

	// The program has started, so it cannot be rebound until Reset
	assert.True(t, errors.Is(s.Bind(), ErrNotReset), "Bind after BUSY")

	// Custom handler
	var counts []int
	require.NoError(t, c2.BusyHandler(func(count int) bool {
		counts = append(counts, count)
		return count < 3
	}))
	assert.Equal(t, BusyError, errKind(c2.Exec(`INSERT INTO x VALUES(2)`)))
	assert.Equal(t, []int{0, 1, 2, 3}, counts)

	// Built-in timeout replaces the handler
	require.NoError(t, c2.BusyTimeout(50*time.Millisecond))
	start := time.Now()
	assert.Equal(t, BusyError, errKind(c2.Exec(`INSERT INTO x VALUES(3)`)))
	assert.True(t, time.Since(start) >= 20*time.Millisecond)
	assert.Len(t, counts, 4)

	// A panicking handler gives up
	require.NoError(t, c2.BusyHandler(func(int) bool { panic("busy") }))
	assert.Equal(t, BusyError, errKind(c2.Exec(`INSERT INTO x VALUES(4)`)))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "busy handler", hook.LastEntry().Data["callback"])

	// The retried statement succeeds once the lock is released
	require.NoError(t, c1.Commit())
	require.NoError(t, c2.BusyHandler(nil))
	_, err = s.Step()
	assert.Equal(t, io.EOF, err)
	v, err := c2.FirstValue(`SELECT count(*) FROM x`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int64())
}

func TestCallbackRelease(t *testing.T) {
	n0 := LiveHandles()
	c := openConn(t, ":memory:")

	fn := func(args []Value) (Value, error) { return NullValue(), nil }
	require.NoError(t, c.CreateFunction("f", 0, fn))
	require.NoError(t, c.CreateAggregate("g", 1, func() Aggregate { return panicAgg{} }))
	require.NoError(t, c.CreateCollation("h", strings.Compare))
	require.NoError(t, c.SetAuthorizer(func(AuthAction, string, string, string, string) AuthResult {
		return AuthOK
	}))
	require.NoError(t, c.SetTracer(func(string) {}))
	require.NoError(t, c.BusyHandler(func(int) bool { return false }))
	require.NoError(t, c.SetCommitHook(func() bool { return false }))
	require.NoError(t, c.SetRollbackHook(func() {}))
	require.NoError(t, c.SetUpdateHook(func(AuthAction, string, string, int64) {}))
	assert.Equal(t, n0+9, LiveHandles())

	// Replacing releases the previous registration
	require.NoError(t, c.CreateFunction("f", 0, fn))
	require.NoError(t, c.SetTracer(func(string) {}))
	require.NoError(t, c.SetCommitHook(func() bool { return true }))
	assert.Equal(t, n0+9, LiveHandles())

	// So does removal
	require.NoError(t, c.CreateFunction("f", 0, nil))
	require.NoError(t, c.BusyTimeout(0))
	require.NoError(t, c.SetRollbackHook(nil))
	assert.Equal(t, n0+6, LiveHandles())

	closeConn(t, c)
	assert.Equal(t, n0, LiveHandles())
}

func TestCloseLogsRegistrations(t *testing.T) {
	logger, hook := quietLogger()
	logger.SetLevel(logrus.DebugLevel)
	c := openConn(t, ":memory:", WithLogger(logger))

	fn := func(args []Value) (Value, error) { return NullValue(), nil }
	require.NoError(t, c.CreateFunction("Twice", 1, fn))
	require.NoError(t, c.CreateFunction("twice", 2, fn))
	require.NoError(t, c.CreateFunction("gone", 0, fn))
	require.NoError(t, c.CreateFunction("gone", 0, nil))
	require.NoError(t, c.CreateCollation("Rev", strings.Compare))
	closeConn(t, c)

	var entry *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "releasing registered callbacks" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, []string{"twice/1", "twice/2"}, entry.Data["functions"])
	assert.Equal(t, []string{"rev"}, entry.Data["collations"])
}

func TestHooks(t *testing.T) {
	logger, hook := quietLogger()
	c := openConn(t, ":memory:", WithLogger(logger))
	defer closeConn(t, c)
	mustExec(t, c, `CREATE TABLE x(a)`)

	type change struct {
		op        AuthAction
		db, table string
		rowid     int64
	}
	var changes []change
	commits, rollbacks, veto := 0, 0, false
	require.NoError(t, c.SetCommitHook(func() bool {
		commits++
		return veto
	}))
	require.NoError(t, c.SetRollbackHook(func() { rollbacks++ }))
	require.NoError(t, c.SetUpdateHook(func(op AuthAction, db, table string, rowid int64) {
		changes = append(changes, change{op, db, table, rowid})
	}))

	// Each autocommit write commits once; reads do not
	mustExec(t, c, `INSERT INTO x VALUES(1)`)
	mustExec(t, c, `UPDATE x SET a = 2 WHERE rowid = 1`)
	mustExec(t, c, `SELECT * FROM x`)
	mustExec(t, c, `DELETE FROM x WHERE a = 2`)
	assert.Equal(t, []change{
		{INSERT, "main", "x", 1},
		{UPDATE, "main", "x", 1},
		{DELETE, "main", "x", 1},
	}, changes)
	assert.Equal(t, 3, commits)
	assert.Equal(t, 0, rollbacks)

	// Explicit rollback
	require.NoError(t, c.Begin())
	mustExec(t, c, `INSERT INTO x VALUES(3)`)
	require.NoError(t, c.Rollback())
	assert.Equal(t, 3, commits)
	assert.Equal(t, 1, rollbacks)

	// A vetoed commit becomes a rollback
	veto = true
	require.NoError(t, c.Begin())
	mustExec(t, c, `INSERT INTO x VALUES(4)`)
	err := c.Commit()
	var e *Error
	require.True(t, errors.As(err, &e), "Commit() = %v", err)
	assert.Equal(t, CONSTRAINT_COMMITHOOK, e.ExtendedCode())
	assert.Equal(t, ConstraintError, e.Kind())
	assert.Equal(t, 4, commits)
	assert.Equal(t, 2, rollbacks)
	ac, err := c.AutoCommit()
	require.NoError(t, err)
	assert.True(t, ac)
	v, err := c.FirstValue(`SELECT count(*) FROM x`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Int64())

	// A panicking commit hook rolls back; other hooks just log
	require.NoError(t, c.SetCommitHook(func() bool { panic("commit") }))
	assert.Equal(t, ConstraintError, errKind(c.Exec(`INSERT INTO x VALUES(5)`)))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "commit hook", hook.LastEntry().Data["callback"])

	require.NoError(t, c.SetCommitHook(nil))
	require.NoError(t, c.SetUpdateHook(func(AuthAction, string, string, int64) { panic("update") }))
	mustExec(t, c, `INSERT INTO x VALUES(6)`)
	assert.Equal(t, "update hook", hook.LastEntry().Data["callback"])

	// Removed hooks are no longer called
	require.NoError(t, c.SetUpdateHook(nil))
	require.NoError(t, c.SetRollbackHook(nil))
	n := len(changes)
	r := rollbacks
	require.NoError(t, c.Begin())
	mustExec(t, c, `INSERT INTO x VALUES(7)`)
	require.NoError(t, c.Rollback())
	assert.Len(t, changes, n)
	assert.Equal(t, r, rollbacks)
	v, err = c.FirstValue(`SELECT count(*) FROM x`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int64())
}
