// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/u-root/ice9/frame"
)

const (
	// DefaultPort is ice9d's mandated listening port.
	DefaultPort = "5424"
	// DefaultNetwork is the mandated transport.
	DefaultNetwork = "tcp"
	// DefaultChunkSize is the stdin forwarding chunk size.
	DefaultChunkSize = 1024
)

// Cmd is an ice9 client command: as much of exec.Command as the protocol
// supports, bootstrapped over a raw TCP (or other) connection instead of
// a process fork.
type Cmd struct {
	Host    string
	Port    string
	Network string

	ApplicationPath string
	// Args are quoted per BuildCommandLine and sent as the CommandLine
	// frame unless Raw is set. Mutually exclusive with Raw.
	Args []string
	// Raw, if non-empty, is sent verbatim as the CommandLine frame,
	// bypassing BuildCommandLine entirely. Mutually exclusive with Args.
	Raw string

	WorkingDirectory     string
	haveWorkingDirectory bool

	ChunkSize int

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	conn    net.Conn
	closers []func() error
	exitCh  chan exitResult
}

type exitResult struct {
	code int32
	err  error
}

// Command implements exec.Command for ice9: host names the daemon,
// applicationPath and args name the program to run on it.
func Command(host, applicationPath string, args ...string) *Cmd {
	return &Cmd{
		Host:            host,
		Port:            DefaultPort,
		Network:         DefaultNetwork,
		ApplicationPath: applicationPath,
		Args:            args,
		ChunkSize:       DefaultChunkSize,
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	}
}

// WithPort sets the daemon port.
func (c *Cmd) WithPort(port string) *Cmd { c.Port = port; return c }

// WithNetwork sets the dial network ("tcp", "unix", "vsock").
func (c *Cmd) WithNetwork(network string) *Cmd { c.Network = network; return c }

// WithWorkingDirectory requests the child be spawned in dir.
func (c *Cmd) WithWorkingDirectory(dir string) *Cmd {
	c.WorkingDirectory = dir
	c.haveWorkingDirectory = true
	return c
}

// WithChunkSize sets the stdin forwarding chunk size.
func (c *Cmd) WithChunkSize(n int) *Cmd { c.ChunkSize = n; return c }

// WithRawCommandLine switches to verbatim command-line mode: cmdline is
// sent exactly as given instead of being built from Args, which must then
// be empty. This is ice9r's -e mode.
func (c *Cmd) WithRawCommandLine(cmdline string) *Cmd {
	c.Raw = cmdline
	c.Args = nil
	return c
}

// WithIO redirects the child's stdin/stdout/stderr. The defaults are the
// process's own standard streams.
func (c *Cmd) WithIO(stdin io.Reader, stdout, stderr io.Writer) *Cmd {
	c.Stdin, c.Stdout, c.Stderr = stdin, stdout, stderr
	return c
}

// Dial connects to the daemon. It must be called before Start.
func (c *Cmd) Dial() error {
	addr := net.JoinHostPort(c.Host, c.Port)
	conn, err := net.Dial(c.Network, addr)
	if err != nil {
		return fmt.Errorf("client: dial %s %s: %w", c.Network, addr, err)
	}
	v("client: connected to %s %s", c.Network, addr)
	c.conn = conn
	c.closers = append(c.closers, conn.Close)
	return nil
}

// Start sends the setup frames (ApplicationPath, CommandLine, optionally
// WorkingDirectory, then Execute) and begins relaying the child's
// stdout/stderr and the local Stdin in the background.
func (c *Cmd) Start() error {
	if c.conn == nil {
		return fmt.Errorf("client: Cmd has no connection; call Dial first")
	}
	if c.Raw != "" && len(c.Args) > 0 {
		return fmt.Errorf("client: command line arguments cannot be specified when using a raw command line")
	}

	if err := c.sendFrame(frame.ApplicationPath, []byte(c.ApplicationPath)); err != nil {
		return err
	}

	cmdline := c.Raw
	if cmdline == "" {
		cmdline = BuildCommandLine(append([]string{c.ApplicationPath}, c.Args...))
	}
	if err := c.sendFrame(frame.CommandLine, []byte(cmdline)); err != nil {
		return err
	}

	if c.haveWorkingDirectory {
		if err := c.sendFrame(frame.WorkingDirectory, []byte(c.WorkingDirectory)); err != nil {
			return err
		}
	}

	if err := c.sendFrame(frame.Execute, nil); err != nil {
		return err
	}

	c.exitCh = make(chan exitResult, 1)
	go c.receiveLoop()
	go c.forwardStdin()
	return nil
}

// Wait blocks until the child's exit status arrives, or the connection
// fails first.
func (c *Cmd) Wait() (int32, error) {
	res := <-c.exitCh
	return res.code, res.err
}

// Run is Dial, Start and Wait in sequence.
func (c *Cmd) Run() (int32, error) {
	if err := c.Dial(); err != nil {
		return 0, err
	}
	if err := c.Start(); err != nil {
		return 0, err
	}
	return c.Wait()
}

// Close releases every resource Dial/Start acquired. Errors from multiple
// resources are aggregated rather than the first one winning.
func (c *Cmd) Close() error {
	var result *multierror.Error
	for _, f := range c.closers {
		if err := f(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (c *Cmd) sendFrame(cmd frame.Command, payload []byte) error {
	buf, err := frame.Append(nil, cmd, payload)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(buf)
	return err
}

// receiveLoop demultiplexes server->client frames until the exit status
// arrives or the connection drops.
func (c *Cmd) receiveLoop() {
	hdr := make([]byte, frame.HeaderSize)
	for {
		if _, err := io.ReadFull(c.conn, hdr); err != nil {
			c.exitCh <- exitResult{err: fmt.Errorf("client: connection closed before exit status: %w", err)}
			return
		}
		length := int(hdr[1]) | int(hdr[2])<<8
		var payload []byte
		if length > 0 {
			payload = make([]byte, length)
			if _, err := io.ReadFull(c.conn, payload); err != nil {
				c.exitCh <- exitResult{err: fmt.Errorf("client: connection closed mid-frame: %w", err)}
				return
			}
		}

		switch frame.Command(hdr[0]) {
		case frame.Stdout:
			if len(payload) > 0 && c.Stdout != nil {
				c.Stdout.Write(payload)
			}
		case frame.Stderr:
			if len(payload) > 0 && c.Stderr != nil {
				c.Stderr.Write(payload)
			}
		case frame.ExitStatus:
			code, err := frame.DecodeExitStatus(payload)
			c.exitCh <- exitResult{code: code, err: err}
			return
		default:
			v("client: unexpected frame %q", frame.Command(hdr[0]))
		}
	}
}

// forwardStdin relays Stdin to the daemon in ChunkSize pieces, sending an
// empty Stdin frame on EOF to signal the child's stdin should be closed.
func (c *Cmd) forwardStdin() {
	if c.Stdin == nil {
		return
	}
	chunk := c.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	buf := make([]byte, chunk)
	for {
		n, err := c.Stdin.Read(buf)
		if n > 0 {
			if werr := c.sendFrame(frame.Stdin, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			c.sendFrame(frame.Stdin, nil)
			return
		}
	}
}
