// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server implements the daemon event loop: accept connections
// into a fixed-capacity session.Table and, each tick, wait on whichever
// wait objects the table's connections currently want serviced, gated by
// the same backpressure rules package session encodes, then dispatch
// exactly one.
//
// Go has no WaitForMultipleObjects. The translation used here is
// reflect.Select over a freshly built []reflect.SelectCase each tick: the
// listener's accept channel plus every session.Source every live
// connection currently offers. Each tick services one signalled object;
// after an accepted connection, a flush pass then offers every
// connection's queued output to its socket writer. There is no matching
// read pass, since each connection's socket reader goroutine reads
// continuously. This is expressed with Go's own idiom for an unbounded,
// dynamically sized wait set.
package server

var v = func(string, ...interface{}) {}

// SetVerbose installs f as the destination for this package's diagnostic
// output. The default is silent.
func SetVerbose(f func(string, ...interface{})) {
	v = f
}
