// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

// Fundamental datatypes (storage classes).
// [http://www.sqlite.org/c3ref/c_blob.html]
const (
	INTEGER = 1
	FLOAT   = 2
	TEXT    = 3
	BLOB    = 4
	NULL    = 5
)

// General result codes returned by the SQLite API. When converted to an error,
// OK and ROW/DONE codes indicate a non-error condition.
// [http://www.sqlite.org/c3ref/c_abort.html]
const (
	OK         = 0   // Successful result
	ERROR      = 1   // SQL error or missing database
	INTERNAL   = 2   // Internal logic error in SQLite
	PERM       = 3   // Access permission denied
	ABORT      = 4   // Callback routine requested an abort
	BUSY       = 5   // The database file is locked
	LOCKED     = 6   // A table in the database is locked
	NOMEM      = 7   // A malloc() failed
	READONLY   = 8   // Attempt to write a readonly database
	INTERRUPT  = 9   // Operation terminated by sqlite3_interrupt()
	IOERR      = 10  // Some kind of disk I/O error occurred
	CORRUPT    = 11  // The database disk image is malformed
	NOTFOUND   = 12  // Unknown opcode in sqlite3_file_control()
	FULL       = 13  // Insertion failed because database is full
	CANTOPEN   = 14  // Unable to open the database file
	PROTOCOL   = 15  // Database lock protocol error
	EMPTY      = 16  // Database is empty
	SCHEMA     = 17  // The database schema changed
	TOOBIG     = 18  // String or BLOB exceeds size limit
	CONSTRAINT = 19  // Abort due to constraint violation
	MISMATCH   = 20  // Data type mismatch
	MISUSE     = 21  // Library used incorrectly
	NOLFS      = 22  // Uses OS features not supported on host
	AUTH       = 23  // Authorization denied
	FORMAT     = 24  // Auxiliary database format error
	RANGE      = 25  // 2nd parameter to sqlite3_bind out of range
	NOTADB     = 26  // File opened that is not a database file
	ROW        = 100 // sqlite3_step() has another row ready
	DONE       = 101 // sqlite3_step() has finished executing
)

// Extended result codes that are referenced by this package.
// [http://www.sqlite.org/c3ref/c_abort_rollback.html]
const (
	ABORT_ROLLBACK = ABORT | 2<<8
	BUSY_SNAPSHOT  = BUSY | 2<<8
	LOCKED_SHARED  = LOCKED | 1<<8

	CONSTRAINT_COMMITHOOK = CONSTRAINT | 2<<8
)

// Connection status parameters for Conn.Status.
// [http://www.sqlite.org/c3ref/c_dbstatus_options.html]
const (
	DBSTATUS_LOOKASIDE_USED      = 0
	DBSTATUS_CACHE_USED          = 1
	DBSTATUS_SCHEMA_USED         = 2
	DBSTATUS_STMT_USED           = 3
	DBSTATUS_LOOKASIDE_HIT       = 4
	DBSTATUS_LOOKASIDE_MISS_SIZE = 5
	DBSTATUS_LOOKASIDE_MISS_FULL = 6
	DBSTATUS_CACHE_HIT           = 7
	DBSTATUS_CACHE_MISS          = 8
	DBSTATUS_CACHE_WRITE         = 9
	DBSTATUS_DEFERRED_FKS        = 10
)

// Per-connection run-time limits for Conn.Limit.
// [http://www.sqlite.org/c3ref/c_limit_attached.html]
const (
	LIMIT_LENGTH              = 0
	LIMIT_SQL_LENGTH          = 1
	LIMIT_COLUMN              = 2
	LIMIT_EXPR_DEPTH          = 3
	LIMIT_COMPOUND_SELECT     = 4
	LIMIT_VDBE_OP             = 5
	LIMIT_FUNCTION_ARG        = 6
	LIMIT_ATTACHED            = 7
	LIMIT_LIKE_PATTERN_LENGTH = 8
	LIMIT_VARIABLE_NUMBER     = 9
	LIMIT_TRIGGER_DEPTH       = 10
)

// Flags for Open.
// [http://www.sqlite.org/c3ref/c_open_autoproxy.html]
const (
	OPEN_READONLY     = 0x00000001
	OPEN_READWRITE    = 0x00000002
	OPEN_CREATE       = 0x00000004
	OPEN_URI          = 0x00000040
	OPEN_MEMORY       = 0x00000080
	OPEN_NOMUTEX      = 0x00008000
	OPEN_FULLMUTEX    = 0x00010000
	OPEN_SHAREDCACHE  = 0x00020000
	OPEN_PRIVATECACHE = 0x00040000
)

// Authorizer return codes.
// [http://www.sqlite.org/c3ref/c_deny.html]
const (
	DENY   = 1
	IGNORE = 2
)

// Text encodings.
// [http://www.sqlite.org/c3ref/c_any.html]
const (
	UTF8    Encoding = 1
	UTF16LE Encoding = 2
	UTF16BE Encoding = 3
	UTF16   Encoding = 4 // Native byte order; resolved to UTF16LE or UTF16BE
)

// Flag that may be combined with the text encoding of a user-defined function.
const deterministic = 0x000000800

// Authorizer action codes.
// [http://www.sqlite.org/c3ref/c_alter_table.html]
const (
	CREATE_INDEX        AuthAction = 1
	CREATE_TABLE        AuthAction = 2
	CREATE_TEMP_INDEX   AuthAction = 3
	CREATE_TEMP_TABLE   AuthAction = 4
	CREATE_TEMP_TRIGGER AuthAction = 5
	CREATE_TEMP_VIEW    AuthAction = 6
	CREATE_TRIGGER      AuthAction = 7
	CREATE_VIEW         AuthAction = 8
	DELETE              AuthAction = 9
	DROP_INDEX          AuthAction = 10
	DROP_TABLE          AuthAction = 11
	DROP_TEMP_INDEX     AuthAction = 12
	DROP_TEMP_TABLE     AuthAction = 13
	DROP_TEMP_TRIGGER   AuthAction = 14
	DROP_TEMP_VIEW      AuthAction = 15
	DROP_TRIGGER        AuthAction = 16
	DROP_VIEW           AuthAction = 17
	INSERT              AuthAction = 18
	PRAGMA              AuthAction = 19
	READ                AuthAction = 20
	SELECT              AuthAction = 21
	TRANSACTION         AuthAction = 22
	UPDATE              AuthAction = 23
	ATTACH              AuthAction = 24
	DETACH              AuthAction = 25
	ALTER_TABLE         AuthAction = 26
	REINDEX             AuthAction = 27
	ANALYZE             AuthAction = 28
	CREATE_VTABLE       AuthAction = 29
	DROP_VTABLE         AuthAction = 30
	FUNCTION            AuthAction = 31
	SAVEPOINT           AuthAction = 32
	RECURSIVE           AuthAction = 33
)

var authActionNames = [...]string{
	CREATE_INDEX:        "CREATE_INDEX",
	CREATE_TABLE:        "CREATE_TABLE",
	CREATE_TEMP_INDEX:   "CREATE_TEMP_INDEX",
	CREATE_TEMP_TABLE:   "CREATE_TEMP_TABLE",
	CREATE_TEMP_TRIGGER: "CREATE_TEMP_TRIGGER",
	CREATE_TEMP_VIEW:    "CREATE_TEMP_VIEW",
	CREATE_TRIGGER:      "CREATE_TRIGGER",
	CREATE_VIEW:         "CREATE_VIEW",
	DELETE:              "DELETE",
	DROP_INDEX:          "DROP_INDEX",
	DROP_TABLE:          "DROP_TABLE",
	DROP_TEMP_INDEX:     "DROP_TEMP_INDEX",
	DROP_TEMP_TABLE:     "DROP_TEMP_TABLE",
	DROP_TEMP_TRIGGER:   "DROP_TEMP_TRIGGER",
	DROP_TEMP_VIEW:      "DROP_TEMP_VIEW",
	DROP_TRIGGER:        "DROP_TRIGGER",
	DROP_VIEW:           "DROP_VIEW",
	INSERT:              "INSERT",
	PRAGMA:              "PRAGMA",
	READ:                "READ",
	SELECT:              "SELECT",
	TRANSACTION:         "TRANSACTION",
	UPDATE:              "UPDATE",
	ATTACH:              "ATTACH",
	DETACH:              "DETACH",
	ALTER_TABLE:         "ALTER_TABLE",
	REINDEX:             "REINDEX",
	ANALYZE:             "ANALYZE",
	CREATE_VTABLE:       "CREATE_VTABLE",
	DROP_VTABLE:         "DROP_VTABLE",
	FUNCTION:            "FUNCTION",
	SAVEPOINT:           "SAVEPOINT",
	RECURSIVE:           "RECURSIVE",
}
