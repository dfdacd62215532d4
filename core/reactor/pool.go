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
	"sync"
	"time"

	liberr "github.com/sabouaram/golib/errors"
	liblog "github.com/sabouaram/golib/logger"
)

// ConnPool implements the Connection lifecycle of spec.md §3: acquired
// from the free list when a listener fires, released back to the free
// list on close. When the free list is empty, the oldest entry of the
// reusable-idle queue is forcibly closed to reclaim one.
type ConnPool struct {
	mu sync.Mutex

	free []*Connection

	idleHead *idleNode
	idleTail *idleNode

	size int
	max  int
}

// NewConnPool pre-allocates max Connection slots.
func NewConnPool(max int) *ConnPool {
	p := &ConnPool{max: max}
	p.free = make([]*Connection, 0, max)
	for i := 0; i < max; i++ {
		p.free = append(p.free, &Connection{})
	}
	p.size = max
	return p
}

// Acquire pops a Connection from the free list, closing the oldest idle
// connection to make room if the free list is empty.
func (p *ConnPool) Acquire() (*Connection, liberr.Error) {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.mu.Unlock()
		if !p.evictOldestIdle() {
			return nil, ErrorConnectionPoolExhausted.Error(nil)
		}
		p.mu.Lock()
	}

	n := len(p.free)
	c := p.free[n-1]
	p.free = p.free[:n-1]
	c.inFreeList = false
	p.mu.Unlock()

	c.mu.Lock()
	c.open = true
	c.instance++ // toggle: a fresh tenant invalidates prior stale events
	c.reuse = false
	c.dirty = false
	c.arenaCleanup = nil
	c.Read = Event{Kind: EventRead, Conn: c}
	c.Write = Event{Kind: EventWrite, Conn: c}
	c.mu.Unlock()

	return c, nil
}

// Release returns c to the free list and runs its arena cleanups, after
// unlinking it from the idle queue if it was a member.
func (p *ConnPool) Release(c *Connection) {
	p.removeFromIdle(c)

	c.mu.Lock()
	c.open = false
	c.fd = -1
	c.Raw = nil
	c.mu.Unlock()

	c.runCleanups()

	p.mu.Lock()
	c.inFreeList = true
	p.free = append(p.free, c)
	p.mu.Unlock()
}

// MarkIdle moves c onto the tail of the reusable-idle queue (a keepalive
// connection waiting for the next pipelined request).
func (p *ConnPool) MarkIdle(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.inIdleQueue {
		return
	}

	n := &idleNode{conn: c, touch: time.Now()}
	c.idleListElem = n
	c.inIdleQueue = true
	c.lastIdleTouch = n.touch

	if p.idleTail == nil {
		p.idleHead, p.idleTail = n, n
		return
	}
	n.prev = p.idleTail
	p.idleTail.next = n
	p.idleTail = n
}

// removeFromIdle unlinks c from the idle queue if present. Caller holds no
// lock; this method takes p.mu itself.
func (p *ConnPool) removeFromIdle(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeFromIdleLocked(c)
}

func (p *ConnPool) removeFromIdleLocked(c *Connection) {
	if !c.inIdleQueue {
		return
	}
	n := c.idleListElem
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		p.idleHead = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		p.idleTail = n.prev
	}
	c.inIdleQueue = false
	c.idleListElem = nil
}

// evictOldestIdle forcibly closes the oldest reusable-idle connection to
// reclaim a slot for Acquire, per spec.md §3 Lifecycle. It returns false
// if the idle queue was also empty (total exhaustion).
func (p *ConnPool) evictOldestIdle() bool {
	p.mu.Lock()
	oldest := p.idleHead
	if oldest == nil {
		p.mu.Unlock()
		return false
	}
	p.removeFromIdleLocked(oldest.conn)
	p.mu.Unlock()

	liblog.WarnLevel.Logf("connection pool exhausted, closing oldest idle connection to reclaim a slot")

	c := oldest.conn
	c.mu.Lock()
	c.open = false
	if c.Raw != nil {
		_ = c.Raw.Close()
		c.Raw = nil
	}
	c.mu.Unlock()
	c.runCleanups()

	p.mu.Lock()
	c.inFreeList = true
	p.free = append(p.free, c)
	p.mu.Unlock()
	return true
}

// Size returns the total number of connection slots managed by this pool.
func (p *ConnPool) Size() int {
	return p.size
}
