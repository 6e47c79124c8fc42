// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package session

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// killProcess sends SIGKILL directly to the child, bypassing the
// os.Process.Kill indirection the rest of the tree otherwise uses.
func killProcess(cmd *exec.Cmd) error {
	return unix.Kill(cmd.Process.Pid, unix.SIGKILL)
}
