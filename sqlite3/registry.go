// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import "sync"

// registry maps integer handles to Go callback values. Go pointers cannot be
// stored by C code, so SQLite receives the handle as its user data pointer
// and the exported go_* functions look the value up again.
type registry struct {
	mu   sync.Mutex
	next uintptr
	vals map[uintptr]interface{}
}

var callbacks = &registry{vals: make(map[uintptr]interface{})}

// register stores v and returns its handle. Handles are never zero.
func (r *registry) register(v interface{}) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		r.next++
		if _, used := r.vals[r.next]; r.next != 0 && !used {
			break
		}
	}
	r.vals[r.next] = v
	return r.next
}

// lookup returns the value stored under h, or nil if h was released. A
// zombie connection may still invoke callbacks after Conn.Close.
func (r *registry) lookup(h uintptr) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vals[h]
}

// release deletes h. Releasing an unknown handle is a no-op.
func (r *registry) release(h uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.vals, h)
}

// size returns the number of live handles.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.vals)
}
