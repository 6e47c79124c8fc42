// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame implements the ICE9 wire framing format: a fixed 3-byte
// header (one command byte, one little-endian uint16 payload length)
// immediately followed by that many payload bytes.
//
// Encode never allocates on success: it writes directly into a
// caller-supplied slice, so it can be used against the tail of a
// fixed-capacity send buffer the way the connection state machine in
// package session requires. Decode is a read-only view over a receive
// buffer; it never copies the payload.
package frame
