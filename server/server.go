// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"fmt"
	"math"
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"

	"github.com/u-root/ice9/session"
)

// DefaultAddr is ice9d's mandated bind address: TCP port 5424 on every
// interface.
const DefaultAddr = ":5424"

// DefaultMaxConns is the fixed connection-table capacity.
const DefaultMaxConns = 16

// vsockAny is VMADDR_CID_ANY, accepting a connection from any context ID.
const vsockAny = math.MaxUint32

// Server is the daemon: a fixed-capacity table of connections and the
// event loop that services them.
type Server struct {
	table *session.Table
}

// New creates a Server whose connection table holds at most maxConns
// simultaneous sessions. maxConns <= 0 selects DefaultMaxConns.
func New(maxConns int) *Server {
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	return &Server{table: session.NewTable(maxConns)}
}

// Table exposes the server's connection table, chiefly so tests and
// Advertise's tenant count can inspect it.
func (s *Server) Table() *session.Table { return s.table }

// Listen opens a listener for Serve. network selects the transport:
//   - "tcp" (or "") binds addr, or DefaultAddr if addr is empty — the
//     mandated, default transport.
//   - "unix" binds a Unix domain socket at the path addr.
//   - "vsock" binds an AF_VSOCK socket; addr is "port" or "cid:port",
//     for daemons embedded in a VM-based test harness reachable from the
//     hypervisor side without a host-routed TCP port. This is additive to
//     the mandated TCP listener, never a replacement for it.
func Listen(network, addr string) (net.Listener, error) {
	switch network {
	case "vsock":
		cid, port, err := parseVsockAddr(addr)
		if err != nil {
			return nil, err
		}
		return vsock.ListenContextID(cid, port, nil)

	case "unix", "unixpacket":
		return net.Listen(network, addr)

	case "", "tcp":
		if addr == "" {
			addr = DefaultAddr
		}
		return listenConfig.Listen(context.Background(), "tcp", addr)

	default:
		return net.Listen(network, addr)
	}
}

func parseVsockAddr(addr string) (cid, port uint32, err error) {
	if i := strings.IndexByte(addr, ':'); i >= 0 {
		c, err := strconv.ParseUint(addr[:i], 0, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("server: invalid vsock cid %q: %w", addr[:i], err)
		}
		p, err := strconv.ParseUint(addr[i+1:], 0, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("server: invalid vsock port %q: %w", addr[i+1:], err)
		}
		return uint32(c), uint32(p), nil
	}
	p, err := strconv.ParseUint(addr, 0, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("server: invalid vsock port %q: %w", addr, err)
	}
	return vsockAny, uint32(p), nil
}

// acceptResult is one net.Listener.Accept() outcome, delivered across a
// channel so Serve's single select loop never itself blocks in Accept.
type acceptResult struct {
	conn net.Conn
	err  error
}

// waitEntry associates one reflect.SelectCase with the connection and
// source kind it came from; index 0 (the listener) has conn == nil.
type waitEntry struct {
	conn     *session.Conn
	kind     session.SourceKind
	isAccept bool
}

// Serve runs the event loop until the listener returns a permanent error
// (including from a concurrent ln.Close()), which it then returns.
func (s *Server) Serve(ln net.Listener) error {
	accepted := make(chan acceptResult)
	go func() {
		for {
			c, err := ln.Accept()
			accepted <- acceptResult{conn: c, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		cases := make([]reflect.SelectCase, 0, 1+4*s.table.Len())
		entries := make([]waitEntry, 0, cap(cases))

		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(accepted)})
		entries = append(entries, waitEntry{isAccept: true})

		for _, c := range s.table.All() {
			for _, src := range c.Sources() {
				cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(src.Chan)})
				entries = append(entries, waitEntry{conn: c, kind: src.Kind})
			}
		}

		chosen, recv, ok := reflect.Select(cases)
		entry := entries[chosen]

		if entry.isAccept {
			res := recv.Interface().(acceptResult)
			if res.err != nil {
				return res.err
			}
			s.handleAccept(res.conn)
			s.flushAll()
			continue
		}

		var val interface{}
		if ok {
			val = recv.Interface()
		}
		if err := entry.conn.Dispatch(entry.kind, val); err != nil {
			v("[%d] %v, tearing down", entry.conn.ID(), err)
			entry.conn.Teardown()
			s.table.Remove(entry.conn)
			continue
		}
		if entry.conn.ReadyToDestroy() {
			entry.conn.Teardown()
			s.table.Remove(entry.conn)
		}
	}
}

func (s *Server) handleAccept(conn net.Conn) {
	c, err := s.table.Add(conn)
	if err != nil {
		v("rejecting connection: %v", err)
		conn.Close()
		return
	}
	v("[%d] accepted from %s", c.ID(), conn.RemoteAddr())
}

// flushAll offers every connection's queued outbound bytes to its
// background writer. Reads need no equivalent step: each connection's
// socket reader goroutine is already continuously trying.
func (s *Server) flushAll() {
	// Table.Remove shifts the table's backing slice in place, so iterate
	// a snapshot rather than the live slice.
	snapshot := append([]*session.Conn(nil), s.table.All()...)
	for _, c := range snapshot {
		if err := c.Flush(); err != nil {
			v("[%d] %v, tearing down", c.ID(), err)
			c.Teardown()
			s.table.Remove(c)
		}
	}
}
