// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeio

import (
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
)

// DefaultChunkSize is the maximum number of bytes read from (or written to)
// the pipe in a single helper-goroutine operation.
const DefaultChunkSize = 32 * 1024

// State is the lifecycle state of an Endpoint.
type State int

const (
	// Idle: no operation in progress; Initiate may be called.
	Idle State = iota
	// Pending: the helper goroutine is blocked in a syscall read or
	// write; Initiate must not be called again until Result has been
	// called.
	Pending
	// Ready: the helper goroutine has completed; Result is callable and
	// will return to Idle.
	Ready
)

// ErrNotIdle is returned by Initiate when an operation is already pending.
var ErrNotIdle = errors.New("pipeio: endpoint is not idle")

// ErrNotReady is returned by Result when no completed operation is waiting
// to be consumed.
var ErrNotReady = errors.New("pipeio: endpoint has no ready result")

// ErrBrokenPipe is returned by Result when the peer has closed its end of
// the pipe. For a read endpoint this is the UNIX-pipe equivalent of EOF; for
// a write endpoint it means the reader is gone.
var ErrBrokenPipe = errors.New("pipeio: broken pipe")

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EPIPE) {
		return ErrBrokenPipe
	}
	return err
}

// ReadEndpoint is the read side of a pipe.
type ReadEndpoint struct {
	file  *os.File
	chunk int

	mu    sync.Mutex
	state State
	event chan struct{}
	data  []byte
	err   error

	wake    chan struct{}
	abandon bool
}

// NewReader wraps f (the read end of an OS pipe) in a ReadEndpoint and
// starts its helper goroutine. chunkSize <= 0 selects DefaultChunkSize.
func NewReader(f *os.File, chunkSize int) *ReadEndpoint {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	e := &ReadEndpoint{file: f, chunk: chunkSize, wake: make(chan struct{}, 1)}
	go e.loop()
	return e
}

func (e *ReadEndpoint) loop() {
	buf := make([]byte, e.chunk)
	for range e.wake {
		for {
			n, err := e.file.Read(buf)
			if n == 0 && err == nil {
				// Zero-length reads can be propagated by some pipe
				// implementations but do not correspond to semantic
				// data; discard and read again in the background.
				continue
			}
			e.mu.Lock()
			if e.abandon {
				e.mu.Unlock()
				return
			}
			e.data = append(e.data[:0], buf[:n]...)
			e.err = err
			e.state = Ready
			ev := e.event
			e.mu.Unlock()
			close(ev)
			break
		}
	}
}

// Initiate schedules the next read. It requires the endpoint be Idle.
func (e *ReadEndpoint) Initiate() error {
	e.mu.Lock()
	if e.state != Idle {
		e.mu.Unlock()
		return ErrNotIdle
	}
	e.state = Pending
	e.event = make(chan struct{})
	e.mu.Unlock()
	e.wake <- struct{}{}
	return nil
}

// Event returns the wait object for the currently pending (or just
// completed) operation. It is only meaningful after Initiate has been
// called at least once.
func (e *ReadEndpoint) Event() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.event
}

// State reports the endpoint's current lifecycle state.
func (e *ReadEndpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Result consumes the completed read. It requires the endpoint be Ready and
// returns it to Idle. A zero-length result with ErrBrokenPipe signals EOF.
func (e *ReadEndpoint) Result() ([]byte, error) {
	e.mu.Lock()
	if e.state != Ready {
		e.mu.Unlock()
		return nil, ErrNotReady
	}
	data, err := e.data, e.err
	e.state = Idle
	e.mu.Unlock()

	terr := translate(err)
	if terr == ErrBrokenPipe {
		return nil, ErrBrokenPipe
	}
	if terr != nil {
		return nil, terr
	}
	return data, nil
}

// Abandon orphans the endpoint: its helper goroutine, possibly still
// blocked in a syscall read that may never return on the target platform,
// is left running forever rather than risk a deadlock by closing the
// handle out from under it. This is the one documented, intentional leak in
// the design; see Close for platforms where closing is safe.
func (e *ReadEndpoint) Abandon() {
	e.mu.Lock()
	e.abandon = true
	e.mu.Unlock()
}

// WriteEndpoint is the write side of a pipe.
type WriteEndpoint struct {
	file *os.File

	mu      sync.Mutex
	state   State
	event   chan struct{}
	pending []byte
	written int
	err     error

	wake    chan []byte
	abandon bool
}

// NewWriter wraps f (the write end of an OS pipe) in a WriteEndpoint and
// starts its helper goroutine.
func NewWriter(f *os.File) *WriteEndpoint {
	e := &WriteEndpoint{file: f, wake: make(chan []byte, 1)}
	go e.loop()
	return e
}

func (e *WriteEndpoint) loop() {
	for data := range e.wake {
		n, err := e.file.Write(data)
		e.mu.Lock()
		if e.abandon {
			e.mu.Unlock()
			return
		}
		e.written = n
		e.err = err
		e.state = Ready
		ev := e.event
		e.mu.Unlock()
		close(ev)
	}
}

// Initiate copies data and schedules a write of it. It requires the
// endpoint not be Pending; at most one write may be pending at a time.
func (e *WriteEndpoint) Initiate(data []byte) error {
	e.mu.Lock()
	if e.state == Pending {
		e.mu.Unlock()
		return ErrNotIdle
	}
	e.state = Pending
	e.event = make(chan struct{})
	e.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	e.wake <- cp
	return nil
}

// Event returns the wait object for the currently pending (or just
// completed) write.
func (e *WriteEndpoint) Event() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.event
}

// Pending reports whether a write is currently in progress.
func (e *WriteEndpoint) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Pending
}

// Result consumes the completed write, returning the number of bytes
// written, and returns the endpoint to Idle.
func (e *WriteEndpoint) Result() (int, error) {
	e.mu.Lock()
	if e.state != Ready {
		e.mu.Unlock()
		return 0, ErrNotReady
	}
	n, err := e.written, e.err
	e.state = Idle
	e.mu.Unlock()
	return n, translate(err)
}

// Abandon orphans the endpoint; see ReadEndpoint.Abandon.
func (e *WriteEndpoint) Abandon() {
	e.mu.Lock()
	e.abandon = true
	e.mu.Unlock()
}

// NewStdinPipe creates an OS pipe for a child's standard input. The read
// end is returned unwrapped, for handing to exec.Cmd.Stdin; the write end
// is wrapped in a WriteEndpoint for the caller to drive asynchronously.
func NewStdinPipe() (childRead *os.File, write *WriteEndpoint, err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return r, NewWriter(w), nil
}

// NewOutputPipe creates an OS pipe for a child's standard output or
// standard error. The write end is returned unwrapped, for handing to
// exec.Cmd.Stdout/Stderr; the read end is wrapped in a ReadEndpoint for the
// caller to drive asynchronously.
func NewOutputPipe(chunkSize int) (read *ReadEndpoint, childWrite *os.File, err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return NewReader(r, chunkSize), w, nil
}
