// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

/*
#include "shim.h"
*/
import "C"

import (
	"fmt"

	"github.com/pkg/errors"
)

// Lifecycle violations detected before any native call is made. They are
// wrapped in *LifecycleError and can be matched with errors.Is.
var (
	ErrConnClosed       = errors.New("connection is closed")
	ErrStmtClosed       = errors.New("statement is closed")
	ErrNotReset         = errors.New("statement must be reset first")
	ErrUnknownParameter = errors.New("unknown parameter")
)

// ErrorKind classifies an Error by its primary result code.
type ErrorKind int

const (
	UnknownError ErrorKind = iota
	SQLError
	InternalError
	PermissionError
	AbortError
	BusyError
	LockedError
	MemoryError
	ReadOnlyError
	InterruptError
	IOError
	CorruptError
	NotFoundError
	FullError
	CantOpenError
	ProtocolError
	EmptyError
	SchemaChangedError
	TooBigError
	ConstraintError
	MismatchError
	MisuseError
	UnsupportedError
	AuthorizationError
	FormatError
	RangeError
	NotADatabaseError
)

// errKinds maps primary result codes onto error kinds. The table mirrors the
// numeric values of the SQLite ABI and must not be reordered.
var errKinds = [...]ErrorKind{
	ERROR:      SQLError,
	INTERNAL:   InternalError,
	PERM:       PermissionError,
	ABORT:      AbortError,
	BUSY:       BusyError,
	LOCKED:     LockedError,
	NOMEM:      MemoryError,
	READONLY:   ReadOnlyError,
	INTERRUPT:  InterruptError,
	IOERR:      IOError,
	CORRUPT:    CorruptError,
	NOTFOUND:   NotFoundError,
	FULL:       FullError,
	CANTOPEN:   CantOpenError,
	PROTOCOL:   ProtocolError,
	EMPTY:      EmptyError,
	SCHEMA:     SchemaChangedError,
	TOOBIG:     TooBigError,
	CONSTRAINT: ConstraintError,
	MISMATCH:   MismatchError,
	MISUSE:     MisuseError,
	NOLFS:      UnsupportedError,
	AUTH:       AuthorizationError,
	FORMAT:     FormatError,
	RANGE:      RangeError,
	NOTADB:     NotADatabaseError,
}

var errKindNames = [...]string{
	UnknownError:       "unknown error",
	SQLError:           "SQL error",
	InternalError:      "internal error",
	PermissionError:    "permission denied",
	AbortError:         "abort",
	BusyError:          "busy",
	LockedError:        "locked",
	MemoryError:        "out of memory",
	ReadOnlyError:      "read-only",
	InterruptError:     "interrupted",
	IOError:            "I/O error",
	CorruptError:       "corrupt",
	NotFoundError:      "not found",
	FullError:          "full",
	CantOpenError:      "cannot open",
	ProtocolError:      "protocol error",
	EmptyError:         "empty",
	SchemaChangedError: "schema changed",
	TooBigError:        "too big",
	ConstraintError:    "constraint violation",
	MismatchError:      "type mismatch",
	MisuseError:        "misuse",
	UnsupportedError:   "unsupported",
	AuthorizationError: "unauthorized",
	FormatError:        "format error",
	RangeError:         "out of range",
	NotADatabaseError:  "not a database",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(errKindNames) {
		return errKindNames[k]
	}
	return errKindNames[UnknownError]
}

// KindOf returns the error kind for a primary or extended result code.
func KindOf(rc int) ErrorKind {
	if rc &= 0xff; rc > 0 && rc < len(errKinds) {
		return errKinds[rc]
	}
	return UnknownError
}

// Error is returned for all SQLite API result codes other than OK, ROW, and
// DONE. The message is the one reported by the library.
type Error struct {
	rc  int
	msg string
}

// NewError creates a new Error instance using the specified result code and
// message. A user-defined function may return it to set both the error code
// and the message reported by the statement.
func NewError(rc int, msg string) *Error {
	return &Error{rc, msg}
}

// libErr reports the error code rc. The message is taken from the connection
// if it still describes rc, otherwise the generic text for rc is used.
func libErr(rc C.int, db *C.sqlite3) error {
	if rc == OK {
		return nil
	}
	var msg string
	if db != nil && C.sqlite3_errcode(db)&0xff == rc&0xff {
		msg = C.GoString(C.sqlite3_errmsg(db))
	}
	if msg == "" {
		msg = errstr(rc)
	}
	return &Error{int(rc), msg}
}

// pkgErr reports an error originating in this package.
func pkgErr(rc int, format string, v ...interface{}) error {
	return &Error{rc, fmt.Sprintf(format, v...)}
}

// Code returns the primary result code.
func (err *Error) Code() int {
	return err.rc & 0xff
}

// ExtendedCode returns the extended result code. It is the same as Code for
// errors that carry no extended information.
func (err *Error) ExtendedCode() int {
	return err.rc
}

// Kind classifies the error by its primary result code.
func (err *Error) Kind() ErrorKind {
	return KindOf(err.rc)
}

// Msg returns the message reported by SQLite, without any decoration.
func (err *Error) Msg() string {
	return err.msg
}

// Temporary returns true for BUSY and LOCKED errors, which may succeed if the
// operation is retried.
func (err *Error) Temporary() bool {
	k := err.Kind()
	return k == BusyError || k == LockedError
}

// Error implements the error interface.
func (err *Error) Error() string {
	return fmt.Sprintf("sqlite3: %s [%d]", err.msg, err.rc)
}

// LifecycleError reports misuse of a connection or statement handle, such as
// using it after Close or binding an unknown parameter name. No native call is
// made when one of these is returned.
type LifecycleError struct {
	Op  string
	Err error
}

func lifecycleErr(op string, err error) error {
	return &LifecycleError{op, err}
}

func (err *LifecycleError) Error() string {
	return "sqlite3: " + err.Op + ": " + err.Err.Error()
}

func (err *LifecycleError) Unwrap() error {
	return err.Err
}

// TypeError is returned when a Go value cannot be represented as a Value.
type TypeError struct {
	Value interface{}
	Where string // Parameter name or position, if known
}

func (err *TypeError) Error() string {
	if err.Where != "" {
		return fmt.Sprintf("sqlite3: unsupported type for %s (%T)", err.Where, err.Value)
	}
	return fmt.Sprintf("sqlite3: unsupported type (%T)", err.Value)
}
