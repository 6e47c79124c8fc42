// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import "errors"

// State is a connection's position in the Setup -> Running -> Closing
// lifecycle.
type State int

const (
	// Setup: accepting A/C/W frames and waiting for Execute.
	Setup State = iota
	// Running: child spawned; forwarding stdin/stdout/stderr.
	Running
	// Closing: exit status queued or sent; draining the send buffer
	// before the slot is destroyed.
	Closing
)

func (s State) String() string {
	switch s {
	case Setup:
		return "setup"
	case Running:
		return "running"
	case Closing:
		return "closing"
	default:
		return "invalid"
	}
}

const (
	// RecvBufSize is the fixed capacity of a connection's receive
	// buffer, sized to comfortably exceed one maximum-size frame plus
	// an in-flight partial header.
	RecvBufSize = 72 * 1024

	// SendBufSize is the fixed capacity of a connection's send buffer:
	// large enough to absorb several queued output frames while a slow
	// client catches up.
	SendBufSize = 128 * 1024
)

// Sentinel errors. Callers compare with errors.Is; a non-nil error
// returned from Dispatch or from server-driven methods always means the
// connection must be torn down.
var (
	// ErrUnknownCommand is returned when a frame's command byte is not
	// valid for the connection's current state.
	ErrUnknownCommand = errors.New("session: unknown or out-of-state command")

	// ErrOverflow is returned by writeFrame when the send buffer lacks
	// room for the frame; the connection is torn down rather than
	// allowed to grow unbounded.
	ErrOverflow = errors.New("session: send buffer overflow")

	// ErrTableFull is returned by Table.Add when all slots are in use.
	ErrTableFull = errors.New("session: connection table is full")
)
