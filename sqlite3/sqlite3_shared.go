// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

/*
#cgo pkg-config: sqlite3

// To avoid using pkg-config, comment out the line above and uncomment the one
// below. Use -L to specify the directory containing libsqlite3.so.
//#cgo LDFLAGS: -lsqlite3

#include "shim.h"
*/
import "C"

// errstr returns the English-language text that describes result code rc.
// Codes unknown to the linked library fall back to the generic table below.
// [http://www.sqlite.org/c3ref/errcode.html]
func errstr(rc C.int) string {
	if p := C.sqlite3_errstr(rc); p != nil {
		if msg := C.GoString(p); msg != "unknown error" {
			return msg
		}
	}
	switch rc {
	case ABORT_ROLLBACK:
		return "abort due to ROLLBACK"
	}
	if rc &= 0xff; rc >= 0 && rc < C.int(len(errMsg)) && errMsg[rc] != "" {
		return errMsg[rc]
	}
	return "unknown error"
}

// errMsg contains copies of the error messages returned by sqlite3ErrStr.
var errMsg = [...]string{
	/* SQLITE_OK          */ "not an error",
	/* SQLITE_ERROR       */ "SQL logic error",
	/* SQLITE_INTERNAL    */ "",
	/* SQLITE_PERM        */ "access permission denied",
	/* SQLITE_ABORT       */ "query aborted",
	/* SQLITE_BUSY        */ "database is locked",
	/* SQLITE_LOCKED      */ "database table is locked",
	/* SQLITE_NOMEM       */ "out of memory",
	/* SQLITE_READONLY    */ "attempt to write a readonly database",
	/* SQLITE_INTERRUPT   */ "interrupted",
	/* SQLITE_IOERR       */ "disk I/O error",
	/* SQLITE_CORRUPT     */ "database disk image is malformed",
	/* SQLITE_NOTFOUND    */ "unknown operation",
	/* SQLITE_FULL        */ "database or disk is full",
	/* SQLITE_CANTOPEN    */ "unable to open database file",
	/* SQLITE_PROTOCOL    */ "locking protocol",
	/* SQLITE_EMPTY       */ "",
	/* SQLITE_SCHEMA      */ "database schema has changed",
	/* SQLITE_TOOBIG      */ "string or blob too big",
	/* SQLITE_CONSTRAINT  */ "constraint failed",
	/* SQLITE_MISMATCH    */ "datatype mismatch",
	/* SQLITE_MISUSE      */ "bad parameter or other API misuse",
	/* SQLITE_NOLFS       */ "",
	/* SQLITE_AUTH        */ "authorization denied",
	/* SQLITE_FORMAT      */ "",
	/* SQLITE_RANGE       */ "column index out of range",
	/* SQLITE_NOTADB      */ "file is not a database",
}
