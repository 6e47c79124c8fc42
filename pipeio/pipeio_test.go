// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, ev <-chan struct{}) {
	t.Helper()
	select {
	case <-ev:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pipeio event")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	childStdin, stdinW, err := NewStdinPipe()
	require.NoError(t, err)
	stdoutR, childStdout, err := NewOutputPipe(0)
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 5)
		n, _ := childStdin.Read(buf)
		childStdout.Write(buf[:n])
		childStdin.Close()
		childStdout.Close()
	}()

	require.NoError(t, stdinW.Initiate([]byte("hello")))
	waitEvent(t, stdinW.Event())
	n, err := stdinW.Result()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, stdoutR.Initiate())
	waitEvent(t, stdoutR.Event())
	data, err := stdoutR.Result()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReadResultReportsBrokenPipeOnEOF(t *testing.T) {
	r, childWrite, err := NewOutputPipe(0)
	require.NoError(t, err)
	childWrite.Close()

	require.NoError(t, r.Initiate())
	waitEvent(t, r.Event())
	data, err := r.Result()
	assert.ErrorIs(t, err, ErrBrokenPipe)
	assert.Empty(t, data)
}

func TestInitiateRequiresIdle(t *testing.T) {
	r, childWrite, err := NewOutputPipe(0)
	require.NoError(t, err)
	defer childWrite.Close()

	require.NoError(t, r.Initiate())
	assert.ErrorIs(t, r.Initiate(), ErrNotIdle)
}

func TestWriteInitiateRequiresNotPending(t *testing.T) {
	childRead, w, err := NewStdinPipe()
	require.NoError(t, err)
	defer childRead.Close()

	require.NoError(t, w.Initiate([]byte("x")))
	assert.True(t, w.Pending())
	assert.ErrorIs(t, w.Initiate([]byte("y")), ErrNotIdle)

	// Drain so the helper goroutine doesn't block the test pipe forever.
	go func() {
		buf := make([]byte, 16)
		childRead.Read(buf)
	}()
	waitEvent(t, w.Event())
	_, _ = w.Result()
}

func TestResultRequiresReady(t *testing.T) {
	r, childWrite, err := NewOutputPipe(0)
	require.NoError(t, err)
	defer childWrite.Close()

	_, err = r.Result()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestEmptyWriteCompletes(t *testing.T) {
	childRead, w, err := NewStdinPipe()
	require.NoError(t, err)
	defer childRead.Close()

	require.NoError(t, w.Initiate(nil))
	waitEvent(t, w.Event())
	n, err := w.Result()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
