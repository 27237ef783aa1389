// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

/*
#include "shim.h"
*/
import "C"

import (
	"strings"
	"unsafe"
)

// cStr returns a pointer to the first byte in s. The string must not be
// modified or garbage collected while the pointer is in use by C code.
func cStr(s string) *C.char {
	if s == "" {
		return nil
	}
	return (*C.char)(unsafe.Pointer(unsafe.StringData(s)))
}

// cBytes returns a pointer to the first byte in b.
func cBytes(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

// cBool returns a C representation of a Go bool (false = 0, true = 1).
func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

// goBytes returns a copy of the n bytes at p.
func goBytes(p unsafe.Pointer, n C.int) []byte {
	if p == nil || n <= 0 {
		return []byte{}
	}
	return C.GoBytes(p, n)
}

// goText returns a copy of the n bytes at p as a string.
func goText(p unsafe.Pointer, n C.int) string {
	if p == nil || n <= 0 {
		return ""
	}
	return C.GoStringN((*C.char)(p), n)
}

// optStr returns the Go string for p, which may be nil.
func optStr(p *C.char) string {
	if p == nil {
		return ""
	}
	return C.GoString(p)
}

// Quote returns s as an SQL string literal, with embedded single quotes
// doubled.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Complete returns true if sql appears to be a complete statement, ending with
// a semicolon that is not part of a string literal, comment, or trigger body.
// [http://www.sqlite.org/c3ref/complete.html]
func Complete(sql string) bool {
	sql += "\x00"
	return C.sqlite3_complete(cStr(sql)) != 0
}
