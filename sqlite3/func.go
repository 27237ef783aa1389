// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

/*
#include "shim.h"
*/
import "C"

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Function is a scalar SQL function. It receives one Value per argument and
// returns the result. A returned error becomes an SQL error of the statement
// being evaluated; an *Error also sets the result code.
type Function func(args []Value) (Value, error)

// Aggregate accumulates the rows of one aggregation group. Step is called once
// per row and Final exactly once per group, after which the instance is
// discarded.
type Aggregate interface {
	Step(args []Value) error
	Final() (Value, error)
}

// AggregateFactory returns a new Aggregate for each aggregation group. A group
// without rows (e.g. SELECT count(*) on an empty table) gets a fresh instance
// whose Final is called without any Step.
type AggregateFactory func() Aggregate

// Collation compares two strings, returning a negative number, zero, or a
// positive number if a sorts before, equal to, or after b.
type Collation func(a, b string) int

// AuthAction identifies the operation passed to an Authorizer.
type AuthAction int

func (a AuthAction) String() string {
	if a > 0 && int(a) < len(authActionNames) && authActionNames[a] != "" {
		return authActionNames[a]
	}
	return "AuthAction(" + strconv.Itoa(int(a)) + ")"
}

// AuthResult is the verdict of an Authorizer.
type AuthResult int

const (
	AuthOK     AuthResult = OK     // Allow the operation
	AuthDeny   AuthResult = DENY   // Reject the statement with an error
	AuthIgnore AuthResult = IGNORE // Disallow the action but continue (e.g. read NULL)
)

// AuthBool returns AuthOK for true and AuthDeny for false.
func AuthBool(ok bool) AuthResult {
	if ok {
		return AuthOK
	}
	return AuthDeny
}

// Authorizer is invoked while statements are compiled. The meaning of arg1
// and arg2 depends on action; db is the database name and trigger the name of
// the innermost trigger or view responsible for the access, if any. Results
// other than AuthOK, AuthDeny, and AuthIgnore are treated as AuthIgnore.
// [http://www.sqlite.org/c3ref/set_authorizer.html]
type Authorizer func(action AuthAction, arg1, arg2, db, trigger string) AuthResult

// Tracer receives the text of each statement when it starts running.
// [http://www.sqlite.org/c3ref/trace_v2.html]
type Tracer func(sql string)

// BusyHandler is invoked when a table lock cannot be acquired. count is the
// number of previous invocations for the same locking event. It returns true
// to retry, or false to let the operation fail with BUSY.
// [http://www.sqlite.org/c3ref/busy_handler.html]
type BusyHandler func(count int) bool

// CommitHook is invoked before a transaction is committed. If it returns
// true, the transaction is rolled back instead and COMMIT fails with
// CONSTRAINT_COMMITHOOK.
// [http://www.sqlite.org/c3ref/commit_hook.html]
type CommitHook func() (rollback bool)

// RollbackHook is invoked when a transaction is rolled back.
// [http://www.sqlite.org/c3ref/commit_hook.html]
type RollbackHook func()

// UpdateHook is invoked when a row of a rowid table is inserted, updated, or
// deleted. op is one of INSERT, UPDATE, or DELETE.
// [http://www.sqlite.org/c3ref/update_hook.html]
type UpdateHook func(op AuthAction, db, table string, rowid int64)

// FuncOption configures a user-defined function.
type FuncOption func(*funcConfig)

type funcConfig struct {
	enc   Encoding
	flags int
}

// WithEncoding sets the encoding in which TEXT arguments are passed to the
// function. The connection's text encoding is used by default.
func WithEncoding(enc Encoding) FuncOption {
	return func(cfg *funcConfig) { cfg.enc = enc }
}

// Deterministic declares that the function always returns the same result for
// the same arguments, which allows SQLite to optimize calls.
func Deterministic() FuncOption {
	return func(cfg *funcConfig) { cfg.flags |= deterministic }
}

// funcInfo is the registration of a scalar function.
type funcInfo struct {
	conn *Conn
	name string
	enc  Encoding
	fn   Function
}

// aggInfo is the registration of an aggregate function. Each aggregation group
// stores an id into active in its sqlite3_aggregate_context.
type aggInfo struct {
	conn    *Conn
	name    string
	enc     Encoding
	factory AggregateFactory
	next    int64
	active  map[int64]Aggregate
}

type collInfo struct {
	conn *Conn
	name string
	fn   Collation
}

type authInfo struct {
	conn *Conn
	fn   Authorizer
}

type traceInfo struct {
	conn *Conn
	fn   Tracer
}

type busyInfo struct {
	conn *Conn
	fn   BusyHandler
}

type commitInfo struct {
	conn *Conn
	fn   CommitHook
}

type rollbackInfo struct {
	conn *Conn
	fn   RollbackHook
}

type updateInfo struct {
	conn *Conn
	fn   UpdateHook
}

// CreateFunction registers fn as the scalar SQL function name taking nArg
// arguments (-1 for any number). It replaces a previous function with the same
// name and number of arguments. A nil fn removes the function.
// [http://www.sqlite.org/c3ref/create_function.html]
func (c *Conn) CreateFunction(name string, nArg int, fn Function, opts ...FuncOption) error {
	if err := c.check("create function"); err != nil {
		return err
	}
	var h uintptr
	cfg := c.funcConfig(opts)
	if fn != nil {
		h = callbacks.register(&funcInfo{conn: c, name: name, enc: cfg.enc, fn: fn})
	}
	return c.createFunction(name, nArg, cfg, h, false)
}

// CreateAggregate registers an aggregate SQL function. A new Aggregate is
// obtained from factory for each aggregation group. A nil factory removes the
// function.
func (c *Conn) CreateAggregate(name string, nArg int, factory AggregateFactory, opts ...FuncOption) error {
	if err := c.check("create aggregate"); err != nil {
		return err
	}
	var h uintptr
	cfg := c.funcConfig(opts)
	if factory != nil {
		h = callbacks.register(&aggInfo{
			conn:    c,
			name:    name,
			enc:     cfg.enc,
			factory: factory,
			active:  make(map[int64]Aggregate),
		})
	}
	return c.createFunction(name, nArg, cfg, h, true)
}

func (c *Conn) funcConfig(opts []FuncOption) funcConfig {
	cfg := funcConfig{enc: c.opts.TextEncoding}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.enc = cfg.enc.resolve()
	return cfg
}

// createFunction installs or removes (h == 0) a function. SQLite releases h
// through go_release, even when the call fails.
func (c *Conn) createFunction(name string, nArg int, cfg funcConfig, h uintptr, aggregate bool) error {
	if nArg < -1 || nArg > 127 {
		if h != 0 {
			callbacks.release(h)
		}
		return pkgErr(MISUSE, "invalid number of arguments for %s (%d)", name, nArg)
	}
	zname := name + "\x00"
	flags := int(cfg.enc) | cfg.flags
	rc := C.shim_create_function(c.db, cStr(zname), C.int(nArg), C.int(flags),
		C.uintptr_t(h), cBool(aggregate))
	if rc != OK {
		return libErr(rc, c.db)
	}
	key := strings.ToLower(name) + "/" + strconv.Itoa(nArg)
	if h == 0 {
		delete(c.funcs, key)
	} else {
		c.funcs[key] = h
	}
	c.log.WithFields(logrus.Fields{
		"function":  name,
		"nArg":      nArg,
		"aggregate": aggregate,
		"removed":   h == 0,
	}).Debug("function registered")
	return nil
}

// CreateCollation registers fn as the collating sequence name for UTF-8 text.
// A nil fn removes the collation.
// [http://www.sqlite.org/c3ref/create_collation.html]
func (c *Conn) CreateCollation(name string, fn Collation) error {
	if err := c.check("create collation"); err != nil {
		return err
	}
	var h uintptr
	if fn != nil {
		h = callbacks.register(&collInfo{conn: c, name: name, fn: fn})
	}
	zname := name + "\x00"
	if rc := C.shim_create_collation(c.db, cStr(zname), C.uintptr_t(h)); rc != OK {
		// Unlike create_function_v2, xDestroy is not called on failure
		if h != 0 {
			callbacks.release(h)
		}
		return libErr(rc, c.db)
	}
	key := strings.ToLower(name)
	if h == 0 {
		delete(c.colls, key)
	} else {
		c.colls[key] = h
	}
	c.log.WithField("collation", name).Debug("collation registered")
	return nil
}

// swap installs a new singleton callback handle in *slot and releases the
// previous one.
func swap(slot *uintptr, h uintptr) {
	if prev := *slot; prev != 0 {
		callbacks.release(prev)
	}
	*slot = h
}

// SetAuthorizer registers fn to authorize every action taken by statements
// compiled on the connection. A nil fn removes the authorizer.
// [http://www.sqlite.org/c3ref/set_authorizer.html]
func (c *Conn) SetAuthorizer(fn Authorizer) error {
	if err := c.check("set authorizer"); err != nil {
		return err
	}
	var h uintptr
	if fn != nil {
		h = callbacks.register(&authInfo{conn: c, fn: fn})
	}
	if rc := C.shim_set_authorizer(c.db, C.uintptr_t(h)); rc != OK {
		callbacks.release(h)
		return libErr(rc, c.db)
	}
	swap(&c.auth, h)
	return nil
}

// SetTracer registers fn to receive the SQL text of each statement as it
// starts running. A nil fn removes the tracer.
// [http://www.sqlite.org/c3ref/trace_v2.html]
func (c *Conn) SetTracer(fn Tracer) error {
	if err := c.check("set tracer"); err != nil {
		return err
	}
	var h uintptr
	if fn != nil {
		h = callbacks.register(&traceInfo{conn: c, fn: fn})
	}
	if rc := C.shim_set_trace(c.db, C.uintptr_t(h)); rc != OK {
		callbacks.release(h)
		return libErr(rc, c.db)
	}
	swap(&c.trace, h)
	return nil
}

// BusyHandler registers fn to be invoked when a table lock cannot be acquired.
// It replaces any busy timeout. A nil fn removes the handler, so that BUSY is
// returned immediately.
// [http://www.sqlite.org/c3ref/busy_handler.html]
func (c *Conn) BusyHandler(fn BusyHandler) error {
	if err := c.check("busy handler"); err != nil {
		return err
	}
	var h uintptr
	if fn != nil {
		h = callbacks.register(&busyInfo{conn: c, fn: fn})
	}
	if rc := C.shim_set_busy_handler(c.db, C.uintptr_t(h)); rc != OK {
		callbacks.release(h)
		return libErr(rc, c.db)
	}
	swap(&c.busy, h)
	return nil
}

// BusyTimeout enables the built-in busy handler, which retries the table
// locking operation for the specified duration before aborting. It replaces
// the handler registered with Conn.BusyHandler, if any. The busy handler is
// disabled if d is negative or zero.
// [http://www.sqlite.org/c3ref/busy_timeout.html]
func (c *Conn) BusyTimeout(d time.Duration) error {
	if err := c.check("busy timeout"); err != nil {
		return err
	}
	if rc := C.sqlite3_busy_timeout(c.db, C.int(d/time.Millisecond)); rc != OK {
		return libErr(rc, c.db)
	}
	swap(&c.busy, 0)
	return nil
}

// SetCommitHook registers fn to be invoked before each commit. A nil fn removes
// the hook.
// [http://www.sqlite.org/c3ref/commit_hook.html]
func (c *Conn) SetCommitHook(fn CommitHook) error {
	if err := c.check("set commit hook"); err != nil {
		return err
	}
	var h uintptr
	if fn != nil {
		h = callbacks.register(&commitInfo{conn: c, fn: fn})
	}
	C.shim_set_commit_hook(c.db, C.uintptr_t(h))
	swap(&c.commitHook, h)
	return nil
}

// SetRollbackHook registers fn to be invoked after each rollback. It is not
// invoked when an open transaction is discarded by Close. A nil fn removes the
// hook.
// [http://www.sqlite.org/c3ref/commit_hook.html]
func (c *Conn) SetRollbackHook(fn RollbackHook) error {
	if err := c.check("set rollback hook"); err != nil {
		return err
	}
	var h uintptr
	if fn != nil {
		h = callbacks.register(&rollbackInfo{conn: c, fn: fn})
	}
	C.shim_set_rollback_hook(c.db, C.uintptr_t(h))
	swap(&c.rollbackHook, h)
	return nil
}

// SetUpdateHook registers fn to be invoked for every row changed in a rowid
// table. A nil fn removes the hook.
// [http://www.sqlite.org/c3ref/update_hook.html]
func (c *Conn) SetUpdateHook(fn UpdateHook) error {
	if err := c.check("set update hook"); err != nil {
		return err
	}
	var h uintptr
	if fn != nil {
		h = callbacks.register(&updateInfo{conn: c, fn: fn})
	}
	C.shim_set_update_hook(c.db, C.uintptr_t(h))
	swap(&c.updateHook, h)
	return nil
}
