// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size, in bytes, of a frame header: one command
	// byte plus a little-endian uint16 payload length.
	HeaderSize = 3

	// MaxPayload is the largest payload a single frame can carry; the
	// length field is an unsigned 16-bit integer.
	MaxPayload = 65535
)

// Command identifies the kind of a frame. The same byte value is reused by
// both directions of the protocol for unrelated purposes (client->server
// 'E' means "execute"; server->client 'E' means "stderr data") since the
// two never appear on the same half of the connection at once.
type Command byte

const (
	// Client -> server.
	ApplicationPath  Command = 'A'
	CommandLine      Command = 'C'
	WorkingDirectory Command = 'W'
	Execute          Command = 'E'
	Stdin            Command = 'I'

	// Server -> client.
	Stdout     Command = 'O'
	Stderr     Command = 'E'
	ExitStatus Command = 'X'
)

func (c Command) String() string {
	return string(byte(c))
}

// Size returns the total wire size of a frame carrying a payload of the
// given length.
func Size(payloadLen int) int {
	return HeaderSize + payloadLen
}

// Encode writes a frame header and payload into the start of dst, which
// must have length >= Size(len(payload)), and returns the number of bytes
// written. It is used to append a frame to the tail of a fixed-capacity
// send buffer without allocating.
func Encode(dst []byte, cmd Command, payload []byte) (int, error) {
	if len(payload) > MaxPayload {
		return 0, fmt.Errorf("frame: payload of %d bytes exceeds maximum of %d", len(payload), MaxPayload)
	}
	n := Size(len(payload))
	if len(dst) < n {
		return 0, fmt.Errorf("frame: destination of %d bytes too small for %d-byte frame", len(dst), n)
	}
	dst[0] = byte(cmd)
	binary.LittleEndian.PutUint16(dst[1:3], uint16(len(payload)))
	copy(dst[HeaderSize:n], payload)
	return n, nil
}

// Append encodes cmd and payload onto the end of buf, growing it as
// needed, and returns the new slice. It is a convenience for callers (and
// tests) that do not maintain a fixed-capacity buffer themselves.
func Append(buf []byte, cmd Command, payload []byte) ([]byte, error) {
	n := Size(len(payload))
	start := len(buf)
	if cap(buf)-start < n {
		grown := make([]byte, start, start+n)
		copy(grown, buf)
		buf = grown
	}
	buf = buf[:start+n]
	if _, err := Encode(buf[start:], cmd, payload); err != nil {
		return buf[:start], err
	}
	return buf, nil
}

// Decode attempts to decode a single frame from the head of buf. If buf
// does not yet hold a complete frame (fewer than HeaderSize bytes, or a
// header whose declared payload length extends past the end of buf), ok is
// false and the other return values are zero. payload aliases buf; callers
// that retain it past the next buffer mutation must copy it.
func Decode(buf []byte) (cmd Command, payload []byte, consumed int, ok bool) {
	if len(buf) < HeaderSize {
		return 0, nil, 0, false
	}
	length := int(binary.LittleEndian.Uint16(buf[1:3]))
	total := Size(length)
	if len(buf) < total {
		return 0, nil, 0, false
	}
	return Command(buf[0]), buf[HeaderSize:total], total, true
}

// EncodeExitStatus packs an exit code as the 4-byte little-endian signed
// payload of an ExitStatus frame.
func EncodeExitStatus(code int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(code))
	return b[:]
}

// DecodeExitStatus unpacks the 4-byte little-endian signed payload of an
// ExitStatus frame. It reports an error if payload is not exactly 4 bytes.
func DecodeExitStatus(payload []byte) (int32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("frame: exit status payload is %d bytes, want 4", len(payload))
	}
	return int32(binary.LittleEndian.Uint32(payload)), nil
}
