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
	"sync/atomic"
	"time"

	libatm "github.com/sabouaram/golib/atomic"
)

// AcceptMutexBackoff is the bounded re-attempt timeout used when mutex
// acquisition fails (spec.md §4.2).
const AcceptMutexBackoff = 500 * time.Millisecond

// AcceptMutex is the process-wide, cross-worker mutex gating whether a
// worker's listening sockets are registered with its reactor. It is backed
// by an atomic word so sibling worker processes sharing the same memory
// region (or, in this single-process Go rendering, the same *AcceptMutex
// value) can contend for it without a kernel lock.
//
// This is the mechanism by which sibling workers soft-balance new
// connections: an overloaded worker stops contending, an idle worker
// preferentially acquires it.
type AcceptMutex struct {
	held    int32
	holder  libatm.Value[uint64]
	Enabled bool
}

// NewAcceptMutex creates an accept-mutex. Enabled controls whether mutex
// semantics apply at all — with a single listener and a single worker the
// mutex is typically disabled and listeners stay registered permanently.
func NewAcceptMutex(enabled bool) *AcceptMutex {
	m := &AcceptMutex{Enabled: enabled}
	m.holder = libatm.NewValue[uint64]()
	return m
}

// TryAcquire attempts to acquire the mutex on behalf of workerID. It
// returns true on success. Acquisition always fails while the mutex is
// disabled (the caller should treat "disabled" as "listeners stay
// registered", not as "never accept").
func (m *AcceptMutex) TryAcquire(workerID uint64) bool {
	if !m.Enabled {
		return false
	}
	if atomic.CompareAndSwapInt32(&m.held, 0, 1) {
		m.holder.Store(workerID)
		return true
	}
	return false
}

// Release gives up the mutex. It is idempotent.
func (m *AcceptMutex) Release(workerID uint64) {
	if !m.Enabled {
		return
	}
	if m.holder.Load() == workerID {
		atomic.StoreInt32(&m.held, 0)
	}
}

// IsHeld reports whether the mutex is currently held by anyone.
func (m *AcceptMutex) IsHeld() bool {
	return atomic.LoadInt32(&m.held) == 1
}

// Overload tracks spec.md §4.2's soft-overload backoff: a worker declines
// to contend for the accept-mutex while its overload counter is positive,
// decrementing it by exactly one per loop iteration without attempting
// acquisition.
type Overload struct {
	counter int64
}

// Refresh recomputes the overload counter from current load, following the
// formula in spec.md §4.2: connections_in_use - 7/8 * connection_limit.
// Call this once per iteration before consulting ShouldSkip.
func (o *Overload) Refresh(connectionsInUse, connectionLimit int64) {
	threshold := (connectionLimit * 7) / 8
	v := connectionsInUse - threshold
	if v > o.counter {
		// Only ratchet the counter up when freshly overloaded; a
		// worker that is already counting down should finish its
		// countdown rather than being reset every iteration while
		// load hovers near the threshold.
		o.counter = v
	}
}

// ShouldSkip reports whether this iteration should decline to contend for
// the accept-mutex, decrementing the counter by exactly one as a side
// effect when it does.
func (o *Overload) ShouldSkip() bool {
	if o.counter <= 0 {
		return false
	}
	o.counter--
	return true
}

// Counter exposes the current overload counter value, primarily for tests.
func (o *Overload) Counter() int64 {
	return o.counter
}
