// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/u-root/ice9/frame"
	"github.com/u-root/ice9/pathsearch"
	"github.com/u-root/ice9/pipeio"
)

// SourceKind identifies one of the wait objects a Conn may offer the
// scheduler in package server.
type SourceKind int

const (
	SourceSocketRead SourceKind = iota
	SourceSocketWriteAck
	SourceStdout
	SourceStderr
	SourceStdinWrite
	SourceChildExit
)

// Source is one wait object a Conn currently wants serviced, along with
// the channel the scheduler should add to its wait set. Chan's element
// type varies by Kind; it is always safe to pass to reflect.ValueOf.
type Source struct {
	Kind SourceKind
	Chan interface{}
}

type childResult struct {
	code int32
	err  error
}

// Conn is one connection slot: its socket, receive/send buffers, the
// Setup/Running/Closing lifecycle, and the child process it may own.
type Conn struct {
	id    int
	state State
	conn  net.Conn

	reader *socketReader
	writer *socketWriter

	writePending bool
	sendingLen   int

	recvBuf  [RecvBufSize]byte
	recvUsed int

	sendBuf  [SendBufSize]byte
	sendUsed int

	applicationPath      string
	commandLine          string
	workingDirectory     string
	haveWorkingDirectory bool

	cmd        *exec.Cmd
	stdin      *pipeio.WriteEndpoint
	stdout     *pipeio.ReadEndpoint
	stderr     *pipeio.ReadEndpoint
	stdoutOpen bool
	stderrOpen bool
	childDone  chan childResult
}

// NewConn wraps an accepted connection as a new slot in the Setup state.
func NewConn(id int, conn net.Conn) *Conn {
	c := &Conn{
		id:   id,
		conn: conn,
	}
	c.reader = newSocketReader(conn)
	c.writer = newSocketWriter(conn)
	return c
}

// ID returns the connection's slot identifier, assigned once by Table and
// never reused.
func (c *Conn) ID() int { return c.id }

// State reports the connection's current lifecycle state.
func (c *Conn) State() State { return c.state }

func (c *Conn) spaceFree() int { return SendBufSize - c.sendUsed }

// Sources returns the wait objects this connection currently wants
// serviced. A source only appears once the resource it needs
// (receive-buffer room, send-buffer room for a maximum-size frame) is
// actually available.
func (c *Conn) Sources() []Source {
	var out []Source

	if c.recvUsed+socketReadChunk <= RecvBufSize {
		out = append(out, Source{SourceSocketRead, c.reader.out})
	}
	if c.writePending {
		out = append(out, Source{SourceSocketWriteAck, c.writer.out})
	}

	maxFrame := frame.Size(pipeio.DefaultChunkSize)
	if c.stdoutOpen && c.spaceFree() >= maxFrame {
		out = append(out, Source{SourceStdout, c.stdout.Event()})
	}
	if c.stderrOpen && c.spaceFree() >= maxFrame {
		out = append(out, Source{SourceStderr, c.stderr.Event()})
	}
	if c.stdin != nil && c.stdin.Pending() {
		out = append(out, Source{SourceStdinWrite, c.stdin.Event()})
	}
	if !c.stdoutOpen && !c.stderrOpen && c.cmd != nil && c.childDone != nil && c.spaceFree() >= frame.Size(4) {
		out = append(out, Source{SourceChildExit, c.childDone})
	}
	return out
}

// Dispatch handles the firing of one source previously returned by
// Sources, given the value reflect.Select received from its channel (nil
// for pure completion signals carried on chan struct{}).
func (c *Conn) Dispatch(kind SourceKind, value interface{}) error {
	switch kind {
	case SourceSocketRead:
		return c.handleSocketRead(value.(ioResult))
	case SourceSocketWriteAck:
		return c.handleSocketWriteAck(value.(writeAck))
	case SourceStdout:
		return c.handleOutputReady(&c.stdoutOpen, c.stdout, frame.Stdout)
	case SourceStderr:
		return c.handleOutputReady(&c.stderrOpen, c.stderr, frame.Stderr)
	case SourceStdinWrite:
		return c.handleStdinWriteComplete()
	case SourceChildExit:
		return c.handleChildExit(value.(childResult))
	default:
		return fmt.Errorf("session: unknown source kind %d", kind)
	}
}

// ReadyToDestroy reports whether the connection has finished draining its
// send buffer after entering Closing and its slot may be removed from the
// table.
func (c *Conn) ReadyToDestroy() bool {
	return c.state == Closing && c.sendUsed == 0 && !c.writePending
}

func (c *Conn) handleSocketRead(res ioResult) error {
	if len(res.data) > 0 {
		if c.recvUsed+len(res.data) > RecvBufSize {
			return fmt.Errorf("session: receive buffer overrun")
		}
		copy(c.recvBuf[c.recvUsed:], res.data)
		c.recvUsed += len(res.data)
		if err := c.drainReceiveBuffer(); err != nil {
			return err
		}
	}
	if res.err != nil {
		return fmt.Errorf("session: socket closed: %w", res.err)
	}
	return nil
}

func (c *Conn) handleSocketWriteAck(ack writeAck) error {
	c.writePending = false
	if ack.err != nil {
		return fmt.Errorf("session: socket write failed: %w", ack.err)
	}
	copy(c.sendBuf[:c.sendUsed-c.sendingLen], c.sendBuf[c.sendingLen:c.sendUsed])
	c.sendUsed -= c.sendingLen
	c.sendingLen = 0
	return c.flush()
}

// flush offers any queued outbound bytes to the background socket writer.
// It is a no-op if a write is already in flight or nothing is queued.
func (c *Conn) flush() error {
	if c.writePending || c.sendUsed == 0 {
		return nil
	}
	c.sendingLen = c.sendUsed
	c.writePending = true
	data := append([]byte(nil), c.sendBuf[:c.sendUsed]...)
	c.writer.in <- data
	return nil
}

// Flush offers any queued outbound bytes to the background socket writer.
// Package server calls this once per connection on every pass of the
// listener-driven scheduling loop.
func (c *Conn) Flush() error { return c.flush() }

// writeFrame appends a frame to the send buffer, tearing the connection
// down if it overflows, and then attempts to flush it.
func (c *Conn) writeFrame(cmd frame.Command, payload []byte) error {
	n := frame.Size(len(payload))
	if c.sendUsed+n > SendBufSize {
		return ErrOverflow
	}
	if _, err := frame.Encode(c.sendBuf[c.sendUsed:], cmd, payload); err != nil {
		return err
	}
	c.sendUsed += n
	return c.flush()
}

func (c *Conn) drainReceiveBuffer() error {
	for {
		cmd, payload, n, ok := frame.Decode(c.recvBuf[:c.recvUsed])
		if !ok {
			return nil
		}
		consumed, err := c.dispatch(cmd, payload)
		if err != nil {
			return err
		}
		if !consumed {
			return nil
		}
		copy(c.recvBuf[:c.recvUsed-n], c.recvBuf[n:c.recvUsed])
		c.recvUsed -= n
	}
}

func (c *Conn) dispatch(cmd frame.Command, payload []byte) (consumed bool, err error) {
	switch {
	case cmd == frame.ApplicationPath && c.state == Setup:
		c.applicationPath = string(payload)
		return true, nil
	case cmd == frame.CommandLine && c.state == Setup:
		c.commandLine = string(payload)
		return true, nil
	case cmd == frame.WorkingDirectory && c.state == Setup:
		c.workingDirectory = string(payload)
		c.haveWorkingDirectory = true
		return true, nil
	case cmd == frame.Execute && c.state == Setup:
		if err := c.spawn(); err != nil {
			return true, err
		}
		return true, nil
	case cmd == frame.Stdin && c.state == Running:
		return c.dispatchStdin(payload)
	default:
		return true, ErrUnknownCommand
	}
}

func (c *Conn) dispatchStdin(payload []byte) (consumed bool, err error) {
	if len(payload) == 0 {
		if c.stdin != nil {
			closeWriteEndpoint(c.stdin)
			c.stdin = nil
		}
		return true, nil
	}
	if c.stdin == nil {
		// Child already closed its stdin (or never had one); silently
		// discard the data rather than erroring the connection.
		return true, nil
	}
	if c.stdin.Pending() {
		// Stall: leave the frame in the receive buffer until the
		// in-flight write completes and a future tick re-arms.
		return false, nil
	}
	if err := c.stdin.Initiate(payload); err != nil {
		return true, err
	}
	return true, nil
}

func (c *Conn) handleStdinWriteComplete() error {
	_, err := c.stdin.Result()
	if err != nil {
		if errors.Is(err, pipeio.ErrBrokenPipe) {
			closeWriteEndpoint(c.stdin)
			c.stdin = nil
			return nil
		}
		return err
	}
	return c.drainReceiveBuffer()
}

func (c *Conn) handleOutputReady(open *bool, ep *pipeio.ReadEndpoint, cmd frame.Command) error {
	data, err := ep.Result()
	if err == nil {
		if werr := c.writeFrame(cmd, data); werr != nil {
			return werr
		}
		return ep.Initiate()
	}
	if errors.Is(err, pipeio.ErrBrokenPipe) {
		*open = false
		closeReadEndpoint(ep)
		return c.writeFrame(cmd, nil)
	}
	return err
}

func (c *Conn) handleChildExit(res childResult) error {
	if err := c.writeFrame(frame.ExitStatus, frame.EncodeExitStatus(res.code)); err != nil {
		return err
	}
	c.state = Closing
	return nil
}

// resolveApplicationPath locates the executable to run: a path containing
// a directory separator, or one that already names a file relative to the
// daemon's own working directory, is used as-is; otherwise it is resolved
// against PATH.
func (c *Conn) resolveApplicationPath() string {
	p := c.applicationPath
	if strings.Contains(p, `\`) {
		return p
	}
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p
	}
	if resolved, ok := pathsearch.Search(p); ok {
		return resolved
	}
	return p
}

func (c *Conn) spawn() error {
	childStdin, stdinW, err := pipeio.NewStdinPipe()
	if err != nil {
		return fmt.Errorf("session: create stdin pipe: %w", err)
	}
	stdoutR, childStdout, err := pipeio.NewOutputPipe(pipeio.DefaultChunkSize)
	if err != nil {
		childStdin.Close()
		stdinW.Abandon()
		return fmt.Errorf("session: create stdout pipe: %w", err)
	}
	stderrR, childStderr, err := pipeio.NewOutputPipe(pipeio.DefaultChunkSize)
	if err != nil {
		childStdin.Close()
		childStdout.Close()
		stdinW.Abandon()
		stdoutR.Abandon()
		return fmt.Errorf("session: create stderr pipe: %w", err)
	}

	resolved := c.resolveApplicationPath()
	cmd := buildCmd(resolved, c.commandLine)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = childStdin, childStdout, childStderr
	if c.haveWorkingDirectory {
		cmd.Dir = c.workingDirectory
	}

	if err := cmd.Start(); err != nil {
		childStdin.Close()
		childStdout.Close()
		childStderr.Close()
		stdinW.Abandon()
		stdoutR.Abandon()
		stderrR.Abandon()
		return fmt.Errorf("session: spawn %q: %w", resolved, err)
	}

	// The child has inherited its ends; drop our references to them now
	// that the process has been created.
	childStdin.Close()
	childStdout.Close()
	childStderr.Close()

	c.cmd = cmd
	c.stdin = stdinW
	c.stdout = stdoutR
	c.stderr = stderrR
	c.stdoutOpen = true
	c.stderrOpen = true

	if err := c.stdout.Initiate(); err != nil {
		return err
	}
	if err := c.stderr.Initiate(); err != nil {
		return err
	}

	c.childDone = make(chan childResult, 1)
	go func(cmd *exec.Cmd, done chan<- childResult) {
		waitErr := cmd.Wait()
		code := int32(-1)
		if cmd.ProcessState != nil {
			code = int32(cmd.ProcessState.ExitCode())
		}
		done <- childResult{code: code, err: waitErr}
	}(cmd, c.childDone)

	c.state = Running
	verbose(c.id, "spawned %q", resolved)
	return nil
}

// Teardown releases every resource the connection holds. It is always
// safe to call more than once. The returned error is built with
// multierror and carries the socket-close error; pipe-close and
// process-kill results are not collected.
func (c *Conn) Teardown() error {
	var result *multierror.Error

	if c.reader != nil {
		select {
		case <-c.reader.stop:
		default:
			close(c.reader.stop)
		}
	}
	if c.writer != nil {
		select {
		case <-c.writer.stop:
		default:
			close(c.writer.stop)
		}
	}
	if err := c.conn.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	// The socket helper goroutines always exit promptly once the
	// connection is closed (unlike the pipeio helpers, net.Conn reads and
	// writes are always interruptible by closing the conn); wait for them
	// so a caller that tears down many connections in a row does not
	// accumulate zombie goroutines.
	if c.reader != nil && c.writer != nil {
		var g errgroup.Group
		g.Go(func() error { <-c.reader.done; return nil })
		g.Go(func() error { <-c.writer.done; return nil })
		g.Wait()
	}

	if c.stdin != nil {
		closeWriteEndpoint(c.stdin)
	}
	if c.stdout != nil {
		closeReadEndpoint(c.stdout)
	}
	if c.stderr != nil {
		closeReadEndpoint(c.stderr)
	}
	if c.cmd != nil && c.cmd.Process != nil {
		// Best effort: if the child is still alive when its connection
		// goes away, there is no client left to deliver its exit status
		// to, so there is no reason to keep it around.
		_ = killProcess(c.cmd)
	}
	c.cmd = nil

	return result.ErrorOrNil()
}
