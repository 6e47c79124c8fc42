// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package session

import (
	"os/exec"
	"syscall"
)

// buildCmd constructs the child process command the way
// CreateProcess(application_path, command_line, ...) does: the resolved
// application path names the image to load, and command_line is handed
// to the OS verbatim, to be re-split by the C runtime the child links
// against. Go's os/exec has no portable way to express "pass this exact
// string as the command line"; syscall.SysProcAttr.CmdLine is the
// Windows-specific escape hatch for it.
func buildCmd(applicationPath, commandLine string) *exec.Cmd {
	cmd := exec.Command(applicationPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: commandLine}
	return cmd
}
