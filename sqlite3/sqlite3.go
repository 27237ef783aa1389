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
	"os"
	"runtime"
	"sort"
	"time"
	"unicode/utf16"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// initerr is used to indicate a fatal initialization error, which disables this
// package, but allows the rest of the program to continue running.
var initerr error

// threadsafe is the current threading mode setting. It is initialized to the
// value of SQLITE_THREADSAFE and changed to 2 (multi-thread) in init.
var threadsafe = int(C.sqlite3_threadsafe())

func init() {
	if threadsafe != 0 && threadsafe != 2 {
		// Use multi-thread mode, unless the library was compiled with
		// -DSQLITE_THREADSAFE=0. A connection and its statements are never
		// shared between goroutines, so serialized mode buys nothing.
		if rc := C.shim_config(C.SQLITE_CONFIG_MULTITHREAD); rc != OK {
			initerr = libErr(rc, nil)
			return
		}
		threadsafe = 2
	}

	// Enable URI handling by default.
	C.shim_config_uri(1)

	// Use the same temporary directory as Go.
	// [http://www.sqlite.org/c3ref/temp_directory.html]
	tmp := os.TempDir() + "\x00"
	C.shim_temp_dir(cStr(tmp))

	// "For maximum portability, it is recommended that applications always
	// invoke sqlite3_initialize() directly prior to using any other SQLite
	// interface. Future releases of SQLite may require this."
	// [http://www.sqlite.org/c3ref/initialize.html]
	if rc := C.sqlite3_initialize(); rc != OK {
		initerr = libErr(rc, nil)
		return
	}

	// Register database/sql driver.
	register("sqlite3")
}

// Version returns the version of the linked SQLite library.
// [http://www.sqlite.org/c3ref/libversion.html]
func Version() string {
	return C.GoString(C.sqlite3_libversion())
}

// SingleThread returns true if the SQLite library was compiled with
// -DSQLITE_THREADSAFE=0, in which case separate connections may not be used
// concurrently either.
func SingleThread() bool {
	return threadsafe == 0
}

const defaultFlags = OPEN_READWRITE | OPEN_CREATE

// Options configures a connection. Use the Option functions with Open instead
// of filling it in directly.
type Options struct {
	Flags        int                // OPEN_* flags passed to sqlite3_open_v2
	ResultsAsMap bool               // Pass RowMap instead of Row to ResultSet.Each
	BusyTimeout  time.Duration      // Built-in busy handler timeout, if positive
	TextEncoding Encoding           // Encoding of TEXT values returned by Step
	Logger       logrus.FieldLogger // Destination for warnings and recovered panics
}

// Option sets a connection option.
type Option func(*Options)

// ReadOnly opens the database in read-only mode.
func ReadOnly() Option {
	return func(o *Options) {
		o.Flags = o.Flags&^(OPEN_READWRITE|OPEN_CREATE) | OPEN_READONLY
	}
}

// WithFlags replaces the OPEN_* flags.
func WithFlags(flags int) Option {
	return func(o *Options) { o.Flags = flags }
}

// ResultsAsMap makes ResultSet.Each pass each row as a RowMap.
func ResultsAsMap() Option {
	return func(o *Options) { o.ResultsAsMap = true }
}

// WithBusyTimeout enables the built-in busy handler.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *Options) { o.BusyTimeout = d }
}

// WithTextEncoding selects the default encoding of TEXT values returned by
// statements and passed to user-defined functions.
func WithTextEncoding(enc Encoding) Option {
	return func(o *Options) { o.TextEncoding = enc }
}

// WithLogger sets the logger. The standard logrus logger is used by default.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) { o.Logger = l }
}

func newOptions(opts []Option) Options {
	o := Options{Flags: defaultFlags, TextEncoding: UTF8}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	o.TextEncoding = o.TextEncoding.resolve()
	return o
}

// Conn is a connection handle, which may have multiple databases attached to it
// by using the ATTACH SQL statement.
// [http://www.sqlite.org/c3ref/sqlite3.html]
type Conn struct {
	db   *C.sqlite3
	opts Options
	log  *logrus.Entry

	// Registry handles of the callbacks installed on db. Functions and
	// collations are released by SQLite through go_release, the singleton
	// slots are released here.
	funcs map[string]uintptr // lower(name)/nArg
	colls map[string]uintptr // lower(name)
	auth  uintptr
	trace uintptr
	busy  uintptr

	commitHook   uintptr
	rollbackHook uintptr
	updateHook   uintptr
}

// Open creates a new connection to a SQLite database. The name can be 1) a path
// to a file, which is created if it does not exist, 2) a URI using the syntax
// described at http://www.sqlite.org/uri.html, 3) the string ":memory:", which
// creates a temporary in-memory database, or 4) an empty string, which creates
// a temporary on-disk database (deleted when closed) in the directory returned
// by os.TempDir().
// [http://www.sqlite.org/c3ref/open.html]
func Open(name string, opts ...Option) (*Conn, error) {
	if initerr != nil {
		return nil, initerr
	}
	o := newOptions(opts)
	zname := name + "\x00"

	var db *C.sqlite3
	rc := C.sqlite3_open_v2(cStr(zname), &db, C.int(o.Flags), nil)
	return newConn(db, rc, name, o)
}

// Open16 is like Open, but takes the file name as UTF-16 code units. The
// database text encoding of a new file defaults to native byte order UTF-16.
// Open flags other than the defaults are not supported.
// [http://www.sqlite.org/c3ref/open.html]
func Open16(name []uint16, opts ...Option) (*Conn, error) {
	if initerr != nil {
		return nil, initerr
	}
	o := newOptions(opts)
	if o.Flags != defaultFlags {
		return nil, pkgErr(MISUSE, "Open16 does not accept open flags (%#x)", o.Flags)
	}
	zname := make([]uint16, len(name)+1)
	copy(zname, name)

	var db *C.sqlite3
	rc := C.sqlite3_open16(unsafe.Pointer(&zname[0]), &db)
	return newConn(db, rc, string(utf16.Decode(name)), o)
}

func newConn(db *C.sqlite3, rc C.int, name string, o Options) (*Conn, error) {
	if rc != OK {
		err := libErr(rc, db)
		C.sqlite3_close(db)
		return nil, err
	}
	c := &Conn{
		db:    db,
		opts:  o,
		log:   o.Logger.WithFields(logrus.Fields{"component": "sqlite3", "db": name}),
		funcs: make(map[string]uintptr),
		colls: make(map[string]uintptr),
	}
	C.sqlite3_extended_result_codes(db, 1)
	if o.BusyTimeout > 0 {
		C.sqlite3_busy_timeout(db, C.int(o.BusyTimeout/time.Millisecond))
	}
	runtime.SetFinalizer(c, func(c *Conn) {
		c.log.Warn("connection was not closed")
		c.Close()
	})
	c.log.Debug("connection opened")
	return c, nil
}

// check returns a lifecycle error if the connection was closed.
func (c *Conn) check(op string) error {
	if c.db == nil {
		return lifecycleErr(op, ErrConnClosed)
	}
	return nil
}

// Close releases all resources associated with the connection. If any prepared
// statements are still open, the connection becomes an unusable "zombie" and
// is closed after all remaining statements are finalized. A warning is logged
// in that case, since it usually indicates a statement that was not properly
// released. Closing a connection twice returns ErrConnClosed.
// [http://www.sqlite.org/c3ref/close.html]
func (c *Conn) Close() error {
	db := c.db
	if db == nil {
		return lifecycleErr("close", ErrConnClosed)
	}
	c.db = nil
	runtime.SetFinalizer(c, nil)

	rc := C.sqlite3_close(db)
	if rc&0xff == BUSY {
		c.log.Warn("closing connection with unfinalized statements")
		rc = C.sqlite3_close_v2(db)
	}
	if len(c.funcs) > 0 || len(c.colls) > 0 {
		c.log.WithFields(logrus.Fields{
			"functions":  sortedKeys(c.funcs),
			"collations": sortedKeys(c.colls),
		}).Debug("releasing registered callbacks")
	}
	for _, slot := range []*uintptr{&c.auth, &c.trace, &c.busy,
		&c.commitHook, &c.rollbackHook, &c.updateHook} {
		swap(slot, 0)
	}
	c.funcs, c.colls = nil, nil
	if rc != OK {
		return libErr(rc, nil)
	}
	c.log.Debug("connection closed")
	return nil
}

// sortedKeys returns the keys of a registration map in order.
func sortedKeys(m map[string]uintptr) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Closed returns true once Close was called.
func (c *Conn) Closed() bool {
	return c.db == nil
}

// Options returns the options the connection was opened with.
func (c *Conn) Options() Options {
	return c.opts
}

// Prepare compiles the first statement in sql. Any remaining text after the
// first statement is saved in Stmt.Tail.
// [http://www.sqlite.org/c3ref/prepare.html]
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	if err := c.check("prepare"); err != nil {
		return nil, err
	}
	return newStmt(c, sql)
}

// namedArgs returns the NamedArgs map if it is the only argument in args.
func namedArgs(args []interface{}) NamedArgs {
	if len(args) == 1 {
		switch named := args[0].(type) {
		case NamedArgs:
			return named
		case map[string]interface{}:
			return named
		}
	}
	return nil
}

// Exec is a convenience method for executing one or more statements in sql.
// Arguments may be specified either as a list of unnamed interface{} values or
// as a single NamedArgs map. In unnamed mode, each statement consumes the
// required number of values from args. For example:
//
//	c.Exec("UPDATE x SET a=?; UPDATE x SET b=?", 1, 2) // is executed as:
//	// UPDATE x SET a=1
//	// UPDATE x SET b=2
//
// When NamedArgs is used, the entire map is passed to every statement in sql,
// and unreferenced names are ignored. The following example is identical to the
// one above:
//
//	args := NamedArgs{"@A": 1, "@B": 2}
//	c.Exec("UPDATE x SET a=@A; UPDATE x SET b=@B", args)
//
// Without any arguments, the statements are executed by a single call to
// sqlite3_exec, which should be faster, especially for long SQL scripts.
func (c *Conn) Exec(sql string, args ...interface{}) error {
	if err := c.check("exec"); err != nil {
		return err
	}

	// Fast path via sqlite3_exec, which doesn't support parameter binding
	if len(args) == 0 {
		sql += "\x00"
		return c.exec(cStr(sql))
	}

	// Slow path via Prepare -> Bind -> Step -> Close
	unnamed := namedArgs(args) == nil
	execNext := func() error {
		s, err := newStmt(c, sql)
		if err != nil {
			return err
		}
		defer s.Close()

		sql = s.Tail
		if s.stmt == nil {
			return nil // Comment or whitespace
		}
		var myArgs []interface{}
		if s.nVars > 0 {
			if myArgs = args; unnamed {
				if s.nVars < len(myArgs) {
					myArgs = myArgs[:s.nVars]
				}
				args = args[len(myArgs):]
			}
		}
		binds, err := s.resolve(myArgs, !unnamed)
		if err == nil {
			if err = s.apply(binds); err == nil {
				err = s.drain()
			}
		}
		return err
	}
	var err error
	for sql != "" && err == nil {
		err = execNext()
	}
	if unnamed && err == nil && len(args) != 0 {
		return pkgErr(MISUSE, "%d argument(s) left unconsumed", len(args))
	}
	return err
}

// exec calls sqlite3_exec on sql, which must be a null-terminated C string.
func (c *Conn) exec(sql *C.char) error {
	if rc := C.sqlite3_exec(c.db, sql, nil, nil, nil); rc != OK {
		return libErr(rc, c.db)
	}
	return nil
}

// Query is a convenience method for executing the first statement in sql. The
// returned ResultSet owns the statement and must be closed by the caller.
func (c *Conn) Query(sql string, args ...interface{}) (*ResultSet, error) {
	s, err := c.Prepare(sql)
	if err != nil {
		return nil, err
	}
	rs, err := s.Execute(args...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return rs, nil
}

// Execute runs the first statement in sql and returns all of its rows.
func (c *Conn) Execute(sql string, args ...interface{}) ([]Row, error) {
	rs, err := c.Query(sql, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var rows []Row
	for {
		row, err := rs.Next()
		if err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// FirstRow returns the first row produced by the first statement in sql.
// io.EOF is returned if there are no rows.
func (c *Conn) FirstRow(sql string, args ...interface{}) (Row, error) {
	rs, err := c.Query(sql, args...)
	if err != nil {
		return Row{}, err
	}
	defer rs.Close()
	return rs.Next()
}

// FirstValue returns the first column of the first row produced by the first
// statement in sql. NULL is returned if there are no rows.
func (c *Conn) FirstValue(sql string, args ...interface{}) (Value, error) {
	row, err := c.FirstRow(sql, args...)
	if err == io.EOF {
		return NullValue(), nil
	} else if err != nil {
		return Value{}, err
	}
	return row.At(0), nil
}

// TxMode selects the locking behavior of a transaction.
// [http://www.sqlite.org/lang_transaction.html]
type TxMode string

const (
	Deferred  TxMode = "DEFERRED"
	Immediate TxMode = "IMMEDIATE"
	Exclusive TxMode = "EXCLUSIVE"
)

// Begin starts a new deferred transaction. Use Conn.Transaction or
// c.Exec("BEGIN...") to start an immediate or an exclusive transaction.
// [http://www.sqlite.org/lang_transaction.html]
func (c *Conn) Begin() error {
	if err := c.check("begin"); err != nil {
		return err
	}
	return c.exec(cStr("BEGIN\x00"))
}

// Commit saves all changes made within a transaction to the database.
func (c *Conn) Commit() error {
	if err := c.check("commit"); err != nil {
		return err
	}
	return c.exec(cStr("COMMIT\x00"))
}

// Rollback aborts the current transaction without saving any changes.
func (c *Conn) Rollback() error {
	if err := c.check("rollback"); err != nil {
		return err
	}
	return c.exec(cStr("ROLLBACK\x00"))
}

// Transaction runs fn inside a transaction started in the given mode. The
// transaction is committed if fn returns nil and rolled back if it returns an
// error or panics.
func (c *Conn) Transaction(mode TxMode, fn func(*Conn) error) (err error) {
	if err = c.check("transaction"); err != nil {
		return err
	}
	switch mode {
	case "":
		mode = Deferred
	case Deferred, Immediate, Exclusive:
	default:
		return pkgErr(MISUSE, "invalid transaction mode %q", string(mode))
	}
	begin := "BEGIN " + string(mode) + " TRANSACTION\x00"
	if err = c.exec(cStr(begin)); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			c.rollback()
			panic(r)
		}
		if err != nil {
			c.rollback()
			return
		}
		if err = c.Commit(); err != nil {
			c.rollback()
			err = errors.Wrap(err, "commit")
		}
	}()
	return fn(c)
}

// rollback aborts the current transaction, if any, after a failure that is
// reported elsewhere.
func (c *Conn) rollback() {
	if c.db == nil || C.sqlite3_get_autocommit(c.db) != 0 {
		return
	}
	if err := c.exec(cStr("ROLLBACK\x00")); err != nil {
		c.log.WithError(err).Warn("rollback failed")
	}
}

// Interrupt causes any pending database operation to abort and return at its
// earliest opportunity. It is safe to call this method from a goroutine
// different from the one that is currently running the database operation, but
// it is not safe to call this method on a connection that might close before
// the call returns.
// [http://www.sqlite.org/c3ref/interrupt.html]
func (c *Conn) Interrupt() error {
	db := c.db
	if db == nil {
		return lifecycleErr("interrupt", ErrConnClosed)
	}
	C.sqlite3_interrupt(db)
	return nil
}

// AutoCommit returns true if the database connection is in auto-commit mode
// (i.e. outside of an explicit transaction started by BEGIN).
// [http://www.sqlite.org/c3ref/get_autocommit.html]
func (c *Conn) AutoCommit() (bool, error) {
	if err := c.check("auto commit"); err != nil {
		return false, err
	}
	return C.sqlite3_get_autocommit(c.db) != 0, nil
}

// TransactionActive returns true if an explicit transaction is open.
func (c *Conn) TransactionActive() (bool, error) {
	ac, err := c.AutoCommit()
	return !ac && err == nil, err
}

// ReadOnly returns true if the named database ("main", "temp", or an attached
// name) was opened read-only.
// [http://www.sqlite.org/c3ref/db_readonly.html]
func (c *Conn) ReadOnly(db string) (bool, error) {
	if err := c.check("read only"); err != nil {
		return false, err
	}
	db += "\x00"
	switch C.sqlite3_db_readonly(c.db, cStr(db)) {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, pkgErr(ERROR, "unknown database %q", db[:len(db)-1])
}

// LastInsertRowID returns the ROWID of the most recent successful INSERT
// statement.
// [http://www.sqlite.org/c3ref/last_insert_rowid.html]
func (c *Conn) LastInsertRowID() (int64, error) {
	if err := c.check("last insert rowid"); err != nil {
		return 0, err
	}
	return int64(C.sqlite3_last_insert_rowid(c.db)), nil
}

// Changes returns the number of rows that were changed, inserted, or deleted
// by the most recent statement. Auxiliary changes caused by triggers or
// foreign key actions are not included (see Conn.TotalChanges).
// [http://www.sqlite.org/c3ref/changes.html]
func (c *Conn) Changes() (int, error) {
	if err := c.check("changes"); err != nil {
		return 0, err
	}
	return int(C.sqlite3_changes(c.db)), nil
}

// TotalChanges returns the number of rows changed, inserted, or deleted since
// the connection was opened, including changes caused by triggers or foreign
// key actions.
// [http://www.sqlite.org/c3ref/total_changes.html]
func (c *Conn) TotalChanges() (int, error) {
	if err := c.check("total changes"); err != nil {
		return 0, err
	}
	return int(C.sqlite3_total_changes(c.db)), nil
}

// ErrCode returns the extended result code of the most recent failed API call.
// [http://www.sqlite.org/c3ref/errcode.html]
func (c *Conn) ErrCode() (int, error) {
	if err := c.check("errcode"); err != nil {
		return 0, err
	}
	return int(C.sqlite3_extended_errcode(c.db)), nil
}

// ErrMsg returns the English-language text that describes the most recent
// failed API call.
func (c *Conn) ErrMsg() (string, error) {
	if err := c.check("errmsg"); err != nil {
		return "", err
	}
	return C.GoString(C.sqlite3_errmsg(c.db)), nil
}

// Path returns the full file path of an attached database. An empty string is
// returned for temporary databases.
// [http://www.sqlite.org/c3ref/db_filename.html]
func (c *Conn) Path(db string) (string, error) {
	if err := c.check("path"); err != nil {
		return "", err
	}
	db += "\x00"
	return optStr(C.sqlite3_db_filename(c.db, cStr(db))), nil
}

// Status returns the current and peak values of a connection performance
// counter, specified by one of the DBSTATUS constants. If reset is true, the
// peak value is reset back down to the current value after retrieval.
// [http://www.sqlite.org/c3ref/db_status.html]
func (c *Conn) Status(op int, reset bool) (cur, peak int, err error) {
	if err := c.check("status"); err != nil {
		return 0, 0, err
	}
	var cCur, cPeak C.int
	rc := C.sqlite3_db_status(c.db, C.int(op), &cCur, &cPeak, cBool(reset))
	if rc != OK {
		return 0, 0, pkgErr(MISUSE, "invalid connection status op (%d)", op)
	}
	return int(cCur), int(cPeak), nil
}

// Limit changes a per-connection resource usage or performance limit,
// specified by one of the LIMIT constants, returning its previous value. If the
// new value is negative, the limit is left unchanged and its current value is
// returned.
// [http://www.sqlite.org/c3ref/limit.html]
func (c *Conn) Limit(id, value int) (prev int, err error) {
	if err := c.check("limit"); err != nil {
		return 0, err
	}
	if prev = int(C.sqlite3_limit(c.db, C.int(id), C.int(value))); prev < 0 {
		return 0, pkgErr(MISUSE, "invalid limit id (%d)", id)
	}
	return prev, nil
}
