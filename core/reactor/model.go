/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package reactor

import (
	"net"
	"sync"
	"time"
)

// Handler is invoked when an Event fires. It receives the Connection the
// event is bound to.
type Handler func(c *Connection)

// Event is a scheduling record (read or write) bound to a Connection. The
// Instance field is the stale-event tag described in spec.md §3: it is
// copied out at registration time and compared against the connection's
// current instance bit at dispatch time.
type Event struct {
	Kind EventKind

	Active   bool
	Ready    bool
	TimedOut bool
	TimerSet bool
	Posted   bool
	EOF      bool
	Error    bool

	Instance uint64 // snapshot of Connection.instance at registration time

	Handler Handler
	Conn    *Connection

	deadline  time.Time
	timerNode *timerEntry
}

// EventKind distinguishes a read event from a write event.
type EventKind uint8

const (
	EventRead EventKind = iota
	EventWrite
)

// Connection represents one accepted socket. Its instance bit toggles every
// time the connection is reused from the free list, so that an Event
// registered against a previous tenant of this slot is recognizable as
// stale (spec.md §3).
type Connection struct {
	mu sync.Mutex

	fd   int
	open bool

	Raw net.Conn

	Peer  string // formatted once at accept time, immutable afterwards
	Local string

	Read  Event
	Write Event

	instance uint64

	reuse bool // long-lived idle state (keepalive) flag
	dirty bool // send-chain dirty flag

	// Data is the active per-protocol state occupying this connection:
	// initially an HTTP connection placeholder, later the active request.
	// It is an opaque handle so this package stays protocol-agnostic.
	Data interface{}

	arenaCleanup []func()

	// membership bits: a Connection is a member of at most one of
	// {free-list, reusable-idle queue, timer structure, reactor ready
	// set} at a time for a given purpose.
	inFreeList    bool
	inIdleQueue   bool
	idleListElem  *idleNode
	lastIdleTouch time.Time
}

// IsOpen reports whether the connection's descriptor is valid.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Instance returns the current instance tag, used to build a stale-event
// check snapshot at registration time.
func (c *Connection) Instance() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instance
}

// FD returns the underlying file descriptor.
func (c *Connection) FD() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fd
}

// MarkReuse flips the keepalive-idle flag.
func (c *Connection) MarkReuse(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reuse = v
}

// AddCleanup registers a function to run when the connection's arena is
// torn down (mirrors the pool's cleanup-handler list, spec.md §3 Pool).
func (c *Connection) AddCleanup(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arenaCleanup = append(c.arenaCleanup, fn)
}

// runCleanups executes registered cleanups in reverse registration order,
// matching pool teardown semantics.
func (c *Connection) runCleanups() {
	c.mu.Lock()
	fns := c.arenaCleanup
	c.arenaCleanup = nil
	c.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

type idleNode struct {
	conn  *Connection
	touch time.Time
	prev  *idleNode
	next  *idleNode
}
