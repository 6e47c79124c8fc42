// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package client implements the wire bootstrap for running a command on
// a remote ice9d daemon: dial the daemon, send the A/C/W/E setup frames,
// relay stdin to the child and its stdout/stderr back to the caller, and
// report the exit status.
//
// Cmd is built with Command plus a chain of WithX options, then driven
// through a Dial/Start/Wait/Run/Close lifecycle, mirroring the shape of
// os/exec.Cmd while bootstrapping over this protocol's raw frames instead
// of a process fork.
package client

var v = func(string, ...interface{}) {}

// SetVerbose installs f as the destination for this package's diagnostic
// output. The default is silent.
func SetVerbose(f func(string, ...interface{})) {
	v = f
}
