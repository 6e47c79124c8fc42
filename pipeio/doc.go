// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeio presents a readiness-bearing handle over a one-directional
// OS pipe, for use by an event loop that otherwise only waits on sockets and
// process handles.
//
// Anonymous pipes on the daemon's original target (Windows 9x) support
// neither overlapped I/O nor select-style readiness, and named pipes with
// those properties cannot be created there either. This package works
// around that with one helper goroutine per pipe endpoint, performing a
// blocking read or write and closing a channel to signal completion; the
// event loop polls that channel alongside everything else it waits on.
// An Endpoint moves through an Idle -> Pending -> Ready state machine
// under an initiate/result calling convention, with two invariants a
// caller must respect: never initiate from outside Idle, and never issue
// a second write while one is still pending.
package pipeio
