// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import "net"

// Table is the fixed-capacity connection slot table: at most Cap
// connections are serviced at once, slots are kept as a dense prefix of
// a slice (no tombstones), and connection IDs are assigned monotonically
// and never reused, so a client that logs its ID can always tell two
// sessions apart even across reconnects.
type Table struct {
	slots  []*Conn
	nextID int
	cap    int
}

// NewTable creates an empty table that will accept at most capacity
// simultaneous connections.
func NewTable(capacity int) *Table {
	return &Table{cap: capacity}
}

// Len reports the number of connections currently in the table.
func (t *Table) Len() int { return len(t.slots) }

// Cap reports the table's fixed capacity.
func (t *Table) Cap() int { return t.cap }

// All returns the table's connections. The caller must not retain the
// slice past the next Add/Remove.
func (t *Table) All() []*Conn { return t.slots }

// Add wraps conn as a new slot, assigning it the next never-reused ID. It
// returns ErrTableFull if the table is already at capacity, in which case
// the caller is expected to close conn itself.
func (t *Table) Add(conn net.Conn) (*Conn, error) {
	if len(t.slots) >= t.cap {
		return nil, ErrTableFull
	}
	c := NewConn(t.nextID, conn)
	t.nextID++
	t.slots = append(t.slots, c)
	return c, nil
}

// Remove deletes c from the table, shifting later slots down to keep the
// slice a dense prefix. It does not call c.Teardown; callers must have
// already torn the connection down.
func (t *Table) Remove(c *Conn) {
	for i, s := range t.slots {
		if s == c {
			copy(t.slots[i:], t.slots[i+1:])
			t.slots[len(t.slots)-1] = nil
			t.slots = t.slots[:len(t.slots)-1]
			return
		}
	}
}
