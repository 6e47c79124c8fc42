// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"bytes"
	"net"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/u-root/ice9/server"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	ln, err := server.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv := server.New(4)
	go srv.Serve(ln)

	return ln.Addr().String()
}

func TestRunEchoesArguments(t *testing.T) {
	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not found on PATH")
	}

	addr := startTestServer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	var stdout bytes.Buffer
	cmd := Command(host, echo, "hi", "there").
		WithPort(port).
		WithIO(strings.NewReader(""), &stdout, &stdout)

	code, err := cmd.Run()
	require.NoError(t, err)
	defer cmd.Close()

	assert.Equal(t, int32(0), code)
	assert.Equal(t, "hi there\n", stdout.String())
}

func TestRunPropagatesExitCode(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found on PATH")
	}

	addr := startTestServer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	var stdout bytes.Buffer
	cmd := Command(host, sh, "-c", "exit 7").
		WithPort(port).
		WithIO(strings.NewReader(""), &stdout, &stdout)

	code, err := cmd.Run()
	require.NoError(t, err)
	defer cmd.Close()

	assert.Equal(t, int32(7), code)
}

func TestRunForwardsStdin(t *testing.T) {
	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not found on PATH")
	}

	addr := startTestServer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	var stdout bytes.Buffer
	cmd := Command(host, cat).
		WithPort(port).
		WithIO(strings.NewReader("round trip\n"), &stdout, &stdout)

	code, err := cmd.Run()
	require.NoError(t, err)
	defer cmd.Close()

	assert.Equal(t, int32(0), code)
	assert.Equal(t, "round trip\n", stdout.String())
}

func TestWithRawCommandLineRejectsArgs(t *testing.T) {
	addr := startTestServer(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	cmd := Command(host, "/bin/echo").
		WithPort(port).
		WithRawCommandLine(`/bin/echo raw`)
	cmd.Args = []string{"should-not-combine"}

	require.NoError(t, cmd.Dial())
	defer cmd.Close()

	err = cmd.Start()
	assert.Error(t, err)
}
