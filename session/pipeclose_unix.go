// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package session

import "github.com/u-root/ice9/pipeio"

// closeReadEndpoint and closeWriteEndpoint centralize the per-platform
// choice between Close and Abandon described in pipeio's doc comments
// (pipeio.ClosesCleanly), so the rest of this package never has to branch
// on the platform itself. The choice is made by build tag: this file
// closes, pipeclose_windows.go abandons.
func closeReadEndpoint(e *pipeio.ReadEndpoint)   { e.Close() }
func closeWriteEndpoint(e *pipeio.WriteEndpoint) { e.Close() }
