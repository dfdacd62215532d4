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

// Reactor is the single-goroutine event loop of one worker: it owns a
// Notifier, a Timers structure, the connection pool, and the two deferred
// queues (accept-posted, posted) described in spec.md §4.1. Every field
// except AcceptMutex and Counters is owned exclusively by the goroutine
// running Run — there is no internal locking on the hot path.
type Reactor struct {
	WorkerID uint64

	notifier Notifier
	timers   *Timers
	pool     *ConnPool

	AcceptMutex *AcceptMutex
	Overload    Overload
	Counters    *Counters

	mu        sync.Mutex // guards fdIndex and listeners: touched by Register/accept paths only
	fdIndex   map[int]*Connection
	listeners []*listenerEntry

	acceptPosted []*Event
	posted       []*Event

	acceptMutexHeld bool

	stop chan struct{}
}

type listenerEntry struct {
	fd     int
	accept func() (*Connection, error)
}

// NewReactor builds a reactor around the given Notifier (normally
// NewEpollNotifier) and a connection pool with room for maxConn.
func NewReactor(workerID uint64, n Notifier, maxConn int, mutexEnabled bool) *Reactor {
	return &Reactor{
		WorkerID:    workerID,
		notifier:    n,
		timers:      NewTimers(),
		pool:        NewConnPool(maxConn),
		AcceptMutex: NewAcceptMutex(mutexEnabled),
		Counters:    &Counters{},
		fdIndex:     make(map[int]*Connection),
		stop:        make(chan struct{}),
	}
}

// Pool exposes the reactor's connection pool, mainly for status reporting.
func (r *Reactor) Pool() *ConnPool { return r.pool }

// RegisterListener adds a listening descriptor and its accept callback.
// Listeners registered while the accept-mutex is disabled stay registered
// with the notifier permanently.
func (r *Reactor) RegisterListener(fd int, accept func() (*Connection, error)) liberr.Error {
	r.mu.Lock()
	r.listeners = append(r.listeners, &listenerEntry{fd: fd, accept: accept})
	r.mu.Unlock()

	if !r.AcceptMutex.Enabled {
		if err := r.notifier.Register(fd, EventRead, ModeLevel); err != nil {
			return ErrorListenerBind.Error(err)
		}
	}
	return nil
}

// RegisterConn arms ev for delivery on c's descriptor, snapshotting the
// connection's current instance tag into the event (spec.md §3's stale-event
// guard).
func (r *Reactor) RegisterConn(c *Connection, ev *Event, mode RegisterMode) liberr.Error {
	ev.Instance = c.Instance()
	ev.Active = true

	r.mu.Lock()
	r.fdIndex[c.FD()] = c
	r.mu.Unlock()

	if err := r.notifier.Register(c.FD(), ev.Kind, mode); err != nil {
		return ErrorNotifierRegister.Error(err)
	}
	return nil
}

// Post appends ev to the posted-events queue (drained once per iteration,
// after timer expiry — spec.md §4.1 step 7).
func (r *Reactor) Post(ev *Event) {
	ev.Posted = true
	r.posted = append(r.posted, ev)
}

// postAccept appends ev to the accept-posted queue: events generated by the
// accept handler itself, drained before ordinary posted events so a newly
// accepted connection's first read is serviced in the same iteration.
func (r *Reactor) postAccept(ev *Event) {
	ev.Posted = true
	r.acceptPosted = append(r.acceptPosted, ev)
}

// SetTimer arms a deadline for ev.
func (r *Reactor) SetTimer(ev *Event, deadline time.Time) { r.timers.Set(ev, deadline) }

// ClearTimer disarms ev's deadline, if any.
func (r *Reactor) ClearTimer(ev *Event) { r.timers.Remove(ev) }

// Stop signals Run to return after completing its current iteration.
func (r *Reactor) Stop() { close(r.stop) }

// Run is process_events_and_timers: the worker's entire life is spent in
// this loop (spec.md §4.1). It returns when Stop is called.
func (r *Reactor) Run() liberr.Error {
	defer func() {
		if err := r.notifier.Close(); err != nil {
			liblog.WarnLevel.Logf("error closing reactor notifier: %s", err.Error())
		}
	}()

	for {
		select {
		case <-r.stop:
			return nil
		default:
		}

		if err := r.iterate(); err != nil {
			return err
		}
	}
}

// iterate runs exactly one pass of the loop: mutex contention, timeout
// computation, poll, dispatch, accept-posted drain, timer expiry, posted
// drain.
func (r *Reactor) iterate() liberr.Error {
	r.Overload.Refresh(r.Counters.Active(), int64(r.pool.Size()))

	// Step 2: contend for the accept-mutex unless backed off.
	if r.AcceptMutex.Enabled {
		skip := r.Overload.ShouldSkip()
		switch {
		case skip && r.acceptMutexHeld:
			r.releaseAcceptMutex()
		case !skip && !r.acceptMutexHeld:
			r.acceptMutexHeld = r.AcceptMutex.TryAcquire(r.WorkerID)
			if r.acceptMutexHeld {
				r.armListeners()
			}
		}
	}

	// Step 1: bound the poll timeout by the nearest timer deadline, or by
	// the accept-mutex backoff while we failed to acquire it.
	now := time.Now()
	timeout, hasTimer := r.timers.PollTimeout(now)
	if !hasTimer {
		timeout = -1
	}
	if r.AcceptMutex.Enabled && !r.acceptMutexHeld {
		if timeout < 0 || timeout > AcceptMutexBackoff {
			timeout = AcceptMutexBackoff
		}
	}

	ready, perr := r.notifier.Poll(timeout)
	if perr != nil {
		return ErrorNotifierPoll.Error(perr)
	}

	// Step 3-4: dispatch readiness, validating each event's instance tag
	// against its connection's current tag before calling its handler.
	for _, re := range ready {
		r.dispatch(re)
	}

	// Step 5: drain the accept-posted queue before ordinary posted events,
	// then immediately release the accept-mutex.
	r.drainQueue(&r.acceptPosted)

	if r.acceptMutexHeld {
		r.releaseAcceptMutex()
	}

	// Step 6: expire timers.
	for _, ev := range r.timers.Expire(time.Now()) {
		r.invoke(ev)
	}

	// Step 7: drain the posted queue.
	r.drainQueue(&r.posted)

	return nil
}

func (r *Reactor) armListeners() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		_ = r.notifier.Register(l.fd, EventRead, ModeLevel)
	}
}

func (r *Reactor) disarmListeners() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		_ = r.notifier.Unregister(l.fd, UnregisterNormal)
	}
}

func (r *Reactor) releaseAcceptMutex() {
	r.disarmListeners()
	r.AcceptMutex.Release(r.WorkerID)
	r.acceptMutexHeld = false
}

func (r *Reactor) isListener(fd int) (*listenerEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		if l.fd == fd {
			return l, true
		}
	}
	return nil, false
}

func (r *Reactor) dispatch(re ReadyEvent) {
	if l, ok := r.isListener(re.FD); ok {
		r.acceptLoop(l)
		return
	}

	r.mu.Lock()
	c := r.fdIndex[re.FD]
	r.mu.Unlock()
	if c == nil {
		return
	}

	if re.Readable {
		r.deliverIfCurrent(c, &c.Read, re)
	}
	if re.Writable {
		r.deliverIfCurrent(c, &c.Write, re)
	}
}

// deliverIfCurrent implements the stale-event guard of spec.md §3: an event
// fires only if its snapshotted instance tag still matches the connection's
// live tag, i.e. the slot has not been recycled to a new tenant since this
// event was registered.
func (r *Reactor) deliverIfCurrent(c *Connection, ev *Event, re ReadyEvent) {
	if !ev.Active || ev.Instance != c.Instance() {
		return
	}
	ev.Ready = true
	ev.EOF = re.HangUp
	ev.Error = re.ErrorBit
	r.invoke(ev)
}

func (r *Reactor) invoke(ev *Event) {
	ev.Active = false
	ev.Ready = false
	ev.Posted = false
	if ev.Handler != nil && ev.Conn != nil {
		ev.Handler(ev.Conn)
	}
}

// acceptLoop drains up to a bounded number of pending connections per
// listener-readiness notification (nginx's classic multi_accept), posting a
// read-ready event for each freshly accepted connection into the
// accept-posted queue so it is serviced before this iteration's ordinary
// posted queue.
func (r *Reactor) acceptLoop(l *listenerEntry) {
	const maxAcceptPerIteration = 64

	for i := 0; i < maxAcceptPerIteration; i++ {
		c, err := l.accept()
		if err != nil {
			return
		}
		if c == nil {
			return
		}

		r.Counters.Accepted()
		r.Counters.ConnOpened()

		r.mu.Lock()
		r.fdIndex[c.FD()] = c
		r.mu.Unlock()

		if regErr := r.notifier.Register(c.FD(), EventRead, ModeEdge); regErr != nil {
			liblog.WarnLevel.Logf("failed to register accepted connection: %s", regErr.Error())
			continue
		}

		c.Read.Instance = c.Instance()
		c.Read.Active = true
		c.Read.Ready = true
		r.postAccept(&c.Read)
	}
}

// CloseConn unregisters c's descriptor, clears its timers, removes it from
// the fd index, and returns it to the connection pool. This is the single
// path by which a connection's slot becomes eligible for reuse, which is
// exactly the moment its instance tag is bumped (ConnPool.Acquire).
func (r *Reactor) CloseConn(c *Connection) {
	fd := c.FD()

	r.ClearTimer(&c.Read)
	r.ClearTimer(&c.Write)

	if fd >= 0 {
		_ = r.notifier.Unregister(fd, UnregisterClosing)
		r.mu.Lock()
		delete(r.fdIndex, fd)
		r.mu.Unlock()
	}

	r.Counters.ConnClosed()
	r.pool.Release(c)
}

func (r *Reactor) drainQueue(q *[]*Event) {
	items := *q
	*q = nil
	for _, ev := range items {
		r.invoke(ev)
	}
}
