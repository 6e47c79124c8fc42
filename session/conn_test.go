// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"net"
	"os/exec"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/u-root/ice9/frame"
)

// pump runs conn's scheduler in the background (standing in for package
// server's event loop) until stop is closed, and reports the first
// Dispatch error, if any, on the returned channel.
func pump(conn *Conn, stop <-chan struct{}) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		for {
			srcs := conn.Sources()
			cases := make([]reflect.SelectCase, 0, len(srcs)+1)
			for _, s := range srcs {
				cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.Chan)})
			}
			stopIdx := len(cases)
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(stop)})

			chosen, recv, ok := reflect.Select(cases)
			if chosen == stopIdx {
				errCh <- nil
				return
			}
			var val interface{}
			if ok {
				val = recv.Interface()
			}
			if err := conn.Dispatch(srcs[chosen].Kind, val); err != nil {
				errCh <- err
				return
			}
		}
	}()
	return errCh
}

func sendFrame(t *testing.T, w net.Conn, cmd frame.Command, payload []byte) {
	t.Helper()
	buf, err := frame.Append(nil, cmd, payload)
	require.NoError(t, err)
	_, err = w.Write(buf)
	require.NoError(t, err)
}

func readFrame(t *testing.T, r net.Conn) (frame.Command, []byte) {
	t.Helper()
	r.SetReadDeadline(time.Now().Add(5 * time.Second))
	hdr := make([]byte, frame.HeaderSize)
	_, err := readFull(r, hdr)
	require.NoError(t, err)
	length := int(hdr[1]) | int(hdr[2])<<8
	body := make([]byte, length)
	if length > 0 {
		_, err := readFull(r, body)
		require.NoError(t, err)
	}
	return frame.Command(hdr[0]), body
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func requireExecutable(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not found on PATH: %v", name, err)
	}
	return path
}

func TestConnEchoRoundTrip(t *testing.T) {
	echo := requireExecutable(t, "echo")
	client, daemon := net.Pipe()
	defer client.Close()

	conn := NewConn(7, daemon)
	defer conn.Teardown()

	stop := make(chan struct{})
	defer close(stop)
	pump(conn, stop)

	sendFrame(t, client, frame.ApplicationPath, []byte(echo))
	sendFrame(t, client, frame.CommandLine, []byte(echo+" hello"))
	sendFrame(t, client, frame.Execute, nil)

	var gotStdout []byte
	for {
		cmd, payload := readFrame(t, client)
		if cmd == frame.Stdout {
			if len(payload) == 0 {
				continue
			}
			gotStdout = append(gotStdout, payload...)
			continue
		}
		if cmd == frame.ExitStatus {
			code, err := frame.DecodeExitStatus(payload)
			require.NoError(t, err)
			assert.Equal(t, int32(0), code)
			break
		}
	}

	assert.Equal(t, "hello\n", string(gotStdout))
}

func TestConnExitCodePropagates(t *testing.T) {
	shell := requireExecutable(t, "sh")
	client, daemon := net.Pipe()
	defer client.Close()

	conn := NewConn(1, daemon)
	defer conn.Teardown()

	stop := make(chan struct{})
	defer close(stop)
	pump(conn, stop)

	sendFrame(t, client, frame.ApplicationPath, []byte(shell))
	sendFrame(t, client, frame.CommandLine, []byte(shell+` -c "exit 42"`))
	sendFrame(t, client, frame.Execute, nil)

	for {
		cmd, payload := readFrame(t, client)
		if cmd == frame.ExitStatus {
			code, err := frame.DecodeExitStatus(payload)
			require.NoError(t, err)
			assert.Equal(t, int32(42), code)
			return
		}
	}
}

func TestConnSpawnFailureReportsError(t *testing.T) {
	client, daemon := net.Pipe()
	defer client.Close()

	conn := NewConn(2, daemon)
	defer conn.Teardown()

	stop := make(chan struct{})
	errCh := pump(conn, stop)

	sendFrame(t, client, frame.ApplicationPath, []byte(`nonexistent-program-xyz`))
	sendFrame(t, client, frame.CommandLine, []byte(`nonexistent-program-xyz`))
	sendFrame(t, client, frame.Execute, nil)

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a spawn error to tear the connection down")
	}
}

func TestDispatchRejectsStdinBeforeExecute(t *testing.T) {
	client, daemon := net.Pipe()
	defer client.Close()

	conn := NewConn(3, daemon)
	defer conn.Teardown()

	_, err := conn.dispatch(frame.Stdin, []byte("x"))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestWriteFrameOverflowTearsDown(t *testing.T) {
	client, daemon := net.Pipe()
	defer client.Close()

	conn := NewConn(4, daemon)
	defer conn.Teardown()

	conn.sendUsed = SendBufSize
	err := conn.writeFrame(frame.Stdout, []byte("x"))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestReadyToDestroyAfterExit(t *testing.T) {
	trueBin := requireExecutable(t, "true")
	client, daemon := net.Pipe()
	defer client.Close()

	conn := NewConn(5, daemon)
	defer conn.Teardown()

	stop := make(chan struct{})
	defer close(stop)
	pump(conn, stop)

	sendFrame(t, client, frame.ApplicationPath, []byte(trueBin))
	sendFrame(t, client, frame.CommandLine, []byte(trueBin))
	sendFrame(t, client, frame.Execute, nil)

	for {
		cmd, _ := readFrame(t, client)
		if cmd == frame.ExitStatus {
			break
		}
	}

	for i := 0; i < 200 && !conn.ReadyToDestroy(); i++ {
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, conn.ReadyToDestroy())
}
