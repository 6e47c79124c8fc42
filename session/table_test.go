// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddAssignsMonotonicIDs(t *testing.T) {
	table := NewTable(2)
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	a, err := table.Add(c1)
	require.NoError(t, err)
	b, err := table.Add(c2)
	require.NoError(t, err)

	assert.Equal(t, 0, a.ID())
	assert.Equal(t, 1, b.ID())
	assert.Equal(t, 2, table.Len())
}

func TestTableAddRejectsWhenFull(t *testing.T) {
	table := NewTable(1)
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	_, err := table.Add(c1)
	require.NoError(t, err)

	_, err = table.Add(c2)
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestTableRemoveKeepsDensePrefixAndNeverReusesIDs(t *testing.T) {
	table := NewTable(3)
	pipes := make([]net.Conn, 0, 3)
	conns := make([]*Conn, 0, 3)
	for i := 0; i < 3; i++ {
		a, b := net.Pipe()
		pipes = append(pipes, a, b)
		c, err := table.Add(a)
		require.NoError(t, err)
		conns = append(conns, c)
	}
	defer func() {
		for _, p := range pipes {
			p.Close()
		}
	}()

	table.Remove(conns[1])
	require.Equal(t, 2, table.Len())
	assert.Equal(t, conns[0], table.All()[0])
	assert.Equal(t, conns[2], table.All()[1])

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	next, err := table.Add(a)
	require.NoError(t, err)
	assert.Equal(t, 3, next.ID())
}
