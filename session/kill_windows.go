// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package session

import "os/exec"

// killProcess uses os.Process.Kill, which on Windows calls TerminateProcess;
// there is no SIGKILL equivalent to reach for directly.
func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
