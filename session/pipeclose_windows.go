// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package session

import "github.com/u-root/ice9/pipeio"

// See pipeclose_unix.go. On Windows, ClosesCleanly is false: the pipe
// handle is abandoned rather than closed, leaking the endpoint's helper
// goroutine rather than risk it blocking forever in a ReadFile against a
// handle that no longer exists. This is the one documented, intentional
// resource leak in the design.
func closeReadEndpoint(e *pipeio.ReadEndpoint)   { e.Abandon() }
func closeWriteEndpoint(e *pipeio.WriteEndpoint) { e.Abandon() }
