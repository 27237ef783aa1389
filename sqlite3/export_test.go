// Copyright 2013 The Go-SQLite Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sqlite3

import "context"

// LiveHandles returns the number of registered callback handles.
func LiveHandles() int {
	return callbacks.size()
}

var ParseDSN = parseDSN

// WatchContext runs the database/sql context watcher on c.
func WatchContext(c *Conn, ctx context.Context) (stop func(), err error) {
	return (&conn{c: c}).watch(ctx)
}
