// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows
// +build windows

package pipeio

// ClosesCleanly is false on Windows: a helper goroutine blocked in a
// ReadFile against an anonymous pipe handle whose peer has gone away can
// outlive CloseHandle, deadlocking a caller that waits for the goroutine
// to exit before returning from Close. The fix is to leak the handle and
// its helper goroutine rather than close them. Server teardown (package
// session) calls Abandon instead of Close on Windows; that choice is made
// by package session's build-tagged pipeclose_*.go files.
const ClosesCleanly = false

// Close is intentionally not implemented for ReadEndpoint/WriteEndpoint on
// Windows: callers must use Abandon instead, to avoid the handle-close
// deadlock described above.
