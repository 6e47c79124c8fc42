// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows
// +build !windows

package pipeio

// ClosesCleanly reports whether closing a pipe handle out from under a
// helper goroutine blocked in a read is safe on this platform. On the
// daemon's original target (Windows 9x) it is not: a blocked ReadFile on an
// anonymous pipe can outlive the handle close and the helper thread never
// returns, so teardown must Abandon rather than Close (see pipeio_windows.go).
// On every platform this module actually builds for, closing a pipe file
// descriptor unblocks a concurrent blocking read, so Close is safe to use in
// the server's teardown path.
const ClosesCleanly = true

// Close closes the underlying file descriptor. It is only safe to call
// where ClosesCleanly is true; see Abandon for the portable alternative.
func (e *ReadEndpoint) Close() error {
	return e.file.Close()
}

// Close closes the underlying file descriptor. It is only safe to call
// where ClosesCleanly is true; see Abandon for the portable alternative.
func (e *WriteEndpoint) Close() error {
	return e.file.Close()
}
