// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ice9r is the ice9 client: it connects to an ice9d daemon, runs a single
// command on it, and relays stdin/stdout/stderr.
//
//	ice9r <ip> [-p <port>] <executable> [<args>...]
//	ice9r <ip> [-p <port>] <executable> -e <raw command line>
//
// "--" ends option parsing. -e and positional args are mutually exclusive.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/u-root/ice9/client"
)

var (
	port  = flag.String("p", client.DefaultPort, "daemon port")
	raw   = flag.String("e", "", "raw command line, verbatim (mutually exclusive with positional args)")
	netw  = flag.String("net", client.DefaultNetwork, "network to dial: tcp, unix, or vsock")
	chunk = flag.Int("chunk", client.DefaultChunkSize, "stdin forwarding chunk size")
	debug = flag.Bool("d", false, "enable debug prints")
)

func usage() {
	var b bytes.Buffer
	flag.CommandLine.SetOutput(&b)
	flag.PrintDefaults()
	log.Fatalf("Usage: ice9r [options] host executable [args...]\n"+
		"       ice9r [options] host executable -e \"raw command line\"\n%s", b.String())
}

// splitArgs separates ice9r's own flags from the positional host/
// executable/args that follow, honoring a "--" that ends option parsing
// early. flag.Parse alone cannot express this grammar: -p (and the
// ambient -net/-chunk/-d) precede the executable, while -e trails the
// executable name, so flag.Args() stopping at the first non-flag token
// would swallow -e as a positional argument instead of a flag. -e is
// therefore pulled out in its own pass before the remaining argument
// vector is split the ordinary leading-flags/trailing-positional way.
func splitArgs(argv []string) (flags, positional []string) {
	rest := make([]string, 0, len(argv))
	for i := 0; i < len(argv); i++ {
		if argv[i] == "--" {
			rest = append(rest, argv[i:]...)
			break
		}
		if argv[i] == "-e" && i+1 < len(argv) {
			flags = append(flags, argv[i], argv[i+1])
			i++
			continue
		}
		rest = append(rest, argv[i])
	}

	// host and executable are the only two positionals ice9r itself ever
	// inspects; everything after them belongs to the remote command and
	// must be passed through literally even if it looks like a flag.
	for i := 0; i < len(rest); i++ {
		a := rest[i]
		if len(positional) >= 2 {
			positional = append(positional, a)
			continue
		}
		if a == "--" {
			positional = append(positional, rest[i+1:]...)
			return flags, positional
		}
		if len(a) > 0 && a[0] == '-' {
			flags = append(flags, a)
			// -p, -net, -chunk take a value as the next token unless
			// given as -flag=value; -d is a bare bool flag.
			takesValue := a == "-p" || a == "-net" || a == "-chunk"
			if takesValue && i+1 < len(rest) {
				i++
				flags = append(flags, rest[i])
			}
			continue
		}
		positional = append(positional, a)
	}
	return flags, positional
}

func main() {
	flagArgs, positional := splitArgs(os.Args[1:])
	if err := flag.CommandLine.Parse(flagArgs); err != nil {
		log.Fatal(err)
	}

	if len(positional) < 2 {
		usage()
	}
	host := positional[0]
	executable := positional[1]
	args := positional[2:]

	if *raw != "" && len(args) > 0 {
		fmt.Fprintln(os.Stderr, "ice9r: -e and positional arguments are mutually exclusive")
		usage()
	}

	if *debug {
		client.SetVerbose(log.Printf)
	}

	cmd := client.Command(host, executable, args...).
		WithPort(*port).
		WithNetwork(*netw).
		WithChunkSize(*chunk)
	if *raw != "" {
		cmd = cmd.WithRawCommandLine(*raw)
	}
	defer cmd.Close()

	code, err := cmd.Run()
	if err != nil {
		log.Fatalf("ice9r: %v", err)
	}
	os.Exit(int(code))
}
