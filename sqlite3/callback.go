// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

// Files containing //export may only have declarations in their preamble. The
// C trampolines that call these functions live in shim.c.

/*
#include "shim.h"
*/
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// recovered logs a panic that was stopped at the C boundary.
func (c *Conn) recovered(callback string, r interface{}) {
	c.log.WithFields(logrus.Fields{
		"callback": callback,
		"panic":    r,
	}).Error("recovered panic in callback")
}

// funcArgs decodes the arguments of a user-defined function call.
func funcArgs(argc C.int, argv **C.sqlite3_value, enc Encoding) []Value {
	args := make([]Value, int(argc))
	for i := range args {
		args[i] = argValue(C.shim_arg(argv, C.int(i)), enc)
	}
	return args
}

// resultError reports err as the result of a user-defined function.
func resultError(ctx *C.sqlite3_context, err error) {
	msg := err.Error()
	e, ok := err.(*Error)
	if ok {
		msg = e.Msg()
	}
	if msg == "" {
		msg = "user-defined function failed"
	}
	C.sqlite3_result_error(ctx, cStr(msg), C.int(len(msg)))
	if ok && e.rc != OK {
		C.sqlite3_result_error_code(ctx, C.int(e.rc))
	}
}

//export go_func_call
func go_func_call(ctx *C.sqlite3_context, argc C.int, argv **C.sqlite3_value) {
	fi, _ := callbacks.lookup(uintptr(C.shim_user_data(ctx))).(*funcInfo)
	if fi == nil {
		resultError(ctx, pkgErr(ERROR, "function was removed"))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			fi.conn.recovered(fi.name, r)
			resultError(ctx, errors.Errorf("panic in %s: %v", fi.name, r))
		}
	}()
	v, err := fi.fn(funcArgs(argc, argv, fi.enc))
	if err != nil {
		resultError(ctx, err)
		return
	}
	v.result(ctx)
}

//export go_func_step
func go_func_step(ctx *C.sqlite3_context, argc C.int, argv **C.sqlite3_value) {
	ai, _ := callbacks.lookup(uintptr(C.shim_user_data(ctx))).(*aggInfo)
	if ai == nil {
		resultError(ctx, pkgErr(ERROR, "aggregate was removed"))
		return
	}
	p := C.shim_aggregate_context(ctx, 1)
	if p == nil {
		C.sqlite3_result_error_nomem(ctx)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ai.conn.recovered(ai.name, r)
			resultError(ctx, errors.Errorf("panic in %s: %v", ai.name, r))
		}
	}()
	agg := ai.active[int64(*p)]
	if agg == nil {
		if agg = ai.factory(); agg == nil {
			resultError(ctx, pkgErr(ERROR, "%s: aggregate factory returned nil", ai.name))
			return
		}
		ai.next++
		ai.active[ai.next] = agg
		*p = C.int64_t(ai.next)
	}
	if err := agg.Step(funcArgs(argc, argv, ai.enc)); err != nil {
		resultError(ctx, err)
	}
}

//export go_func_final
func go_func_final(ctx *C.sqlite3_context) {
	ai, _ := callbacks.lookup(uintptr(C.shim_user_data(ctx))).(*aggInfo)
	if ai == nil {
		resultError(ctx, pkgErr(ERROR, "aggregate was removed"))
		return
	}
	var id int64
	if p := C.shim_aggregate_context(ctx, 0); p != nil {
		id = int64(*p)
	}
	agg := ai.active[id]
	delete(ai.active, id)
	defer func() {
		if r := recover(); r != nil {
			ai.conn.recovered(ai.name, r)
			resultError(ctx, errors.Errorf("panic in %s: %v", ai.name, r))
		}
	}()
	if agg == nil {
		// Empty group, or Step failed before storing an instance
		if agg = ai.factory(); agg == nil {
			resultError(ctx, pkgErr(ERROR, "%s: aggregate factory returned nil", ai.name))
			return
		}
	}
	v, err := agg.Final()
	if err != nil {
		resultError(ctx, err)
		return
	}
	v.result(ctx)
}

//export go_release
func go_release(h C.uintptr_t) {
	callbacks.release(uintptr(h))
}

//export go_collation_compare
func go_collation_compare(h C.uintptr_t, na C.int, a unsafe.Pointer, nb C.int, b unsafe.Pointer) (rc C.int) {
	ci, _ := callbacks.lookup(uintptr(h)).(*collInfo)
	if ci == nil {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			ci.conn.recovered(ci.name, r)
			rc = 0
		}
	}()
	switch n := ci.fn(goText(a, na), goText(b, nb)); {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

//export go_authorizer
func go_authorizer(h C.uintptr_t, op C.int, arg1, arg2, db, trigger *C.char) (rc C.int) {
	ai, _ := callbacks.lookup(uintptr(h)).(*authInfo)
	if ai == nil {
		return OK
	}
	defer func() {
		if r := recover(); r != nil {
			ai.conn.recovered("authorizer", r)
			rc = IGNORE
		}
	}()
	switch res := ai.fn(AuthAction(op), optStr(arg1), optStr(arg2), optStr(db), optStr(trigger)); res {
	case AuthOK, AuthDeny, AuthIgnore:
		return C.int(res)
	}
	return IGNORE
}

//export go_trace
func go_trace(h C.uintptr_t, sql *C.char) {
	ti, _ := callbacks.lookup(uintptr(h)).(*traceInfo)
	if ti == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ti.conn.recovered("tracer", r)
		}
	}()
	ti.fn(C.GoString(sql))
}

//export go_busy_handler
func go_busy_handler(h C.uintptr_t, count C.int) (rc C.int) {
	bi, _ := callbacks.lookup(uintptr(h)).(*busyInfo)
	if bi == nil {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			bi.conn.recovered("busy handler", r)
			rc = 0
		}
	}()
	return cBool(bi.fn(int(count)))
}

//export go_commit_hook
func go_commit_hook(h C.uintptr_t) (rc C.int) {
	ci, _ := callbacks.lookup(uintptr(h)).(*commitInfo)
	if ci == nil {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			ci.conn.recovered("commit hook", r)
			rc = 1
		}
	}()
	return cBool(ci.fn())
}

//export go_rollback_hook
func go_rollback_hook(h C.uintptr_t) {
	ri, _ := callbacks.lookup(uintptr(h)).(*rollbackInfo)
	if ri == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ri.conn.recovered("rollback hook", r)
		}
	}()
	ri.fn()
}

//export go_update_hook
func go_update_hook(h C.uintptr_t, op C.int, db, table *C.char, rowid C.sqlite3_int64) {
	ui, _ := callbacks.lookup(uintptr(h)).(*updateInfo)
	if ui == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ui.conn.recovered("update hook", r)
		}
	}()
	ui.fn(AuthAction(op), C.GoString(db), C.GoString(table), int64(rowid))
}
