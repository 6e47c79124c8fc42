// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ice9d is the ice9 daemon: it listens for connections, and for each one
// bootstraps and runs a single child process, relaying its stdin, stdout,
// stderr, and exit status back over the connection.
package main

import (
	"flag"
	"log"
	"net"
	"strconv"

	"github.com/u-root/ice9/server"
	"github.com/u-root/ice9/session"
)

var (
	addr      = flag.String("addr", server.DefaultAddr, "address to listen on")
	netw      = flag.String("net", "tcp", "network to listen on: tcp, unix, unixpacket, or vsock")
	maxConns  = flag.Int("maxconns", server.DefaultMaxConns, "maximum number of simultaneous connections")
	debug     = flag.Bool("d", false, "enable debug prints")
	advertise = flag.Bool("advertise", false, "advertise this daemon over mDNS")
	instance  = flag.String("instance", "", "mDNS instance name (default: hostname-ice9d)")
	domain    = flag.String("domain", "local.", "mDNS domain")
)

func flags() {
	flag.Parse()
	if *debug {
		session.SetVerbose(log.Printf)
		server.SetVerbose(log.Printf)
	}
}

func main() {
	flags()

	ln, err := server.Listen(*netw, *addr)
	if err != nil {
		log.Fatalf("ice9d: listen: %v", err)
	}
	log.Printf("ice9d: listening on %s %s", *netw, ln.Addr())

	srv := server.New(*maxConns)

	if *advertise {
		_, portStr, err := net.SplitHostPort(ln.Addr().String())
		port := 0
		if err == nil {
			port, _ = strconv.Atoi(portStr)
		}
		if err := srv.Advertise(*instance, *domain, port); err != nil {
			log.Printf("ice9d: advertise: %v", err)
		}
	}

	if err := srv.Serve(ln); err != nil {
		log.Fatalf("ice9d: serve: %v", err)
	}
}
