// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package sqlite3 provides an interface to SQLite version 3 databases.

Database connections are created either directly via this package or with the
"sqlite3" database/sql driver. The direct interface exposes SQLite-specific
features, such as user-defined functions, aggregates, collations, and the
authorizer, and gives full control over the life cycle of prepared statements.

Installation

The package uses cgo to call SQLite library functions. Your system must have gcc
and the SQLite development files installed. pkg-config is used to locate and
link with the shared library. You can modify the #cgo lines in
sqlite3_shared.go to change this behavior.

Concurrency

A single connection and all related objects (prepared statements, result sets)
may NOT be used concurrently from multiple goroutines without external locking.
All methods in this package, with the exception of Conn.Interrupt, assume
single-threaded operation. It is safe to use separate database connections
concurrently, even if they are accessing the same database file:

	// ERROR (without any extra synchronization)
	c, _ := sqlite3.Open("./sqlite.db")
	go use(c)
	go use(c)

	// OK
	c1, _ := sqlite3.Open("./sqlite.db")
	c2, _ := sqlite3.Open("./sqlite.db")
	go use(c1)
	go use(c2)

If the SQLite library was compiled with -DSQLITE_THREADSAFE=0, then all mutex
code was omitted, and this package is unsafe for concurrent access even to
separate database connections. Use SingleThread() to determine if this is the
case. This package switches the library to multi-thread mode during
initialization. See http://www.sqlite.org/threadsafe.html for additional
information.

Statements

A prepared statement moves through four states:

	Compiled -- Step--> Active -- Step--> ... --> Done
	    ^                  |                       |
	    +----- Reset ------+-----------------------+

	Close (from any state) --> Closed

Parameters may only be bound in the Compiled state. Step returns io.EOF once the
statement is Done, without calling into SQLite again. Any operation on a Closed
statement, including a second Close, returns a *LifecycleError that wraps
ErrStmtClosed. The same holds for connections and ErrConnClosed.

Here is a short usage example with the error-handling code omitted for brevity:

	c, _ := sqlite3.Open(":memory:")
	c.Exec("CREATE TABLE x(a, b, c)")

	args := sqlite3.NamedArgs{"a": 1, "b": "demo"}
	c.Exec("INSERT INTO x VALUES(:a, :b, :c)", args) // :c will be NULL

	rs, _ := c.Query("SELECT rowid, * FROM x")
	defer rs.Close()
	for row, err := rs.Next(); err == nil; row, err = rs.Next() {
		fmt.Println(row.At(0).Int64(), row.Values[1:])
	}

Data Types

See http://www.sqlite.org/datatype3.html for documentation of the SQLite version
3 data type system. Values crossing the boundary in either direction are
represented by Value, which carries one of the following kinds:

	KindInteger -- int64. Bound from any Go integer type up to math.MaxInt64.
	KindFloat   -- float64. Bound from float32 and float64.
	KindText    -- Bytes in UTF-8, UTF-16LE, or UTF-16BE. Bound from string.
	KindBlob    -- Bytes, possibly with embedded zeros. Bound from []byte.
	               An empty []byte is an empty BLOB, never NULL.
	KindNull    -- Bound from nil.
	KindBool    -- Bound from bool as INTEGER 0 or 1. Read back as INTEGER.

The text encoding of values returned by Step is selected with
WithTextEncoding or Stmt.SetTextEncoding. Other Go types are rejected with a
*TypeError before anything is bound.

Database Names

Methods that require a database name as one of the arguments (e.g. Conn.Path)
expect the symbolic name by which the database is known to the connection, not a
path to a file. Valid database names are "main", "temp", or a name specified
after the AS keyword in an ATTACH statement.

Callbacks

SQLite allows the user to install callback functions that are executed while a
statement is compiled or evaluated: scalar functions, aggregates, collations,
the authorizer, the tracer, the busy handler, and the commit, rollback, and
update hooks. There are three important
things to remember when using these callbacks:

1. The callbacks are executed while SQLite is in the middle of a C function (Go
-> C -> Go), on the goroutine that called Step. They are locked to the current
thread, as though runtime.LockOSThread() was called.

2. The callbacks are not reentrant, meaning that they must not do anything that
will modify the database connection that invoked the callback. This includes
running/preparing any other SQL statements.

3. Only one callback of each type can be installed for each connection (one per
name and argument count for functions, one per name for collations). In
particular, Conn.BusyTimeout and Conn.BusyHandler are mutually exclusive.
Setting one clears the other.

A panic inside a callback never unwinds into SQLite. It is recovered, logged,
and converted: functions and aggregates report an SQL error, the authorizer
answers AuthIgnore, the busy handler stops retrying, a commit hook rolls the
transaction back, and the tracer and the other hooks drop the event.
*/
package sqlite3
