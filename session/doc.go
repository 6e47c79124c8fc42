// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session implements the per-connection state machine: frame
// dispatch, the Setup -> Running -> Closing lifecycle, child-process
// spawning over package pipeio, and the fixed-capacity receive/send
// buffers with their backpressure invariants.
//
// A Conn does not drive its own event loop; package server does that,
// calling Sources to discover what a Conn is currently waiting on (a
// source only appears once the resource it needs is actually available)
// and Dispatch to hand it a signalled source. This keeps the connection
// state machine and the single multi-way wait loop that drives it in
// separate packages, with reflect.Select standing in for the dynamic,
// runtime-sized wait set a single-threaded scheduler needs.
package session

var v = func(string, ...interface{}) {}

// SetVerbose installs f as the destination for this package's diagnostic
// output. The default is silent.
func SetVerbose(f func(string, ...interface{})) {
	v = f
}

func verbose(id int, format string, a ...interface{}) {
	args := make([]interface{}, 0, len(a)+1)
	args = append(args, id)
	args = append(args, a...)
	v("[%d] "+format, args...)
}
