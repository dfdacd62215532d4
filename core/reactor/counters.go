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

import "sync/atomic"

// Counters holds the small set of atomic counters shared across sibling
// workers (spec.md §5): active connections, accepted, handled, reading,
// writing. Every field is updated with atomic fetch-and-add; no request
// state is ever shared across workers beyond these integers.
type Counters struct {
	active   int64
	accepted int64
	handled  int64
	reading  int64
	writing  int64
}

func (c *Counters) ConnOpened() { atomic.AddInt64(&c.active, 1) }
func (c *Counters) ConnClosed() { atomic.AddInt64(&c.active, -1) }
func (c *Counters) Accepted()   { atomic.AddInt64(&c.accepted, 1) }
func (c *Counters) Handled()    { atomic.AddInt64(&c.handled, 1) }

func (c *Counters) ReadStart() { atomic.AddInt64(&c.reading, 1) }
func (c *Counters) ReadDone()  { atomic.AddInt64(&c.reading, -1) }

func (c *Counters) WriteStart() { atomic.AddInt64(&c.writing, 1) }
func (c *Counters) WriteDone()  { atomic.AddInt64(&c.writing, -1) }

// Active returns the number of connections currently in use, the term used
// by the overload formula in spec.md §4.2.
func (c *Counters) Active() int64 { return atomic.LoadInt64(&c.active) }

// Snapshot returns a point-in-time copy of every counter, for a status
// surface or a monitor probe.
type Snapshot struct {
	Active, Accepted, Handled, Reading, Writing int64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Active:   atomic.LoadInt64(&c.active),
		Accepted: atomic.LoadInt64(&c.accepted),
		Handled:  atomic.LoadInt64(&c.handled),
		Reading:  atomic.LoadInt64(&c.reading),
		Writing:  atomic.LoadInt64(&c.writing),
	}
}
