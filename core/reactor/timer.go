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
	"container/heap"
	"time"
)

// timerEntry is one node of the timer structure: an Event keyed by an
// absolute millisecond deadline. An Event may be registered in at most one
// timer slot at a time; Event.TimerSet reflects membership.
type timerEntry struct {
	deadline time.Time
	ev       *Event
	index    int
}

// timerHeap is a binary min-heap keyed by deadline — the "balanced tree or
// heap keyed by deadline" canonical implementation named in spec.md §3.
type timerHeap []*timerEntry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Timers is the per-worker timer structure. It is not safe for concurrent
// use — it is only ever touched from the reactor's single loop goroutine.
type Timers struct {
	h timerHeap
}

// NewTimers creates an empty timer structure.
func NewTimers() *Timers {
	t := &Timers{}
	heap.Init(&t.h)
	return t
}

// Set inserts ev into the timer structure with the given deadline. If ev
// was already registered, it is removed first (an Event may be registered
// in at most one timer slot).
func (t *Timers) Set(ev *Event, deadline time.Time) {
	t.Remove(ev)
	e := &timerEntry{deadline: deadline, ev: ev}
	ev.timerNode = e
	ev.TimerSet = true
	heap.Push(&t.h, e)
}

// Remove unregisters ev from the timer structure, if present. It is a no-op
// if ev is not currently timed.
func (t *Timers) Remove(ev *Event) {
	if ev.timerNode == nil || ev.timerNode.index < 0 {
		ev.TimerSet = false
		ev.timerNode = nil
		return
	}
	heap.Remove(&t.h, ev.timerNode.index)
	ev.timerNode = nil
	ev.TimerSet = false
}

// Empty reports whether any timer is registered.
func (t *Timers) Empty() bool {
	return len(t.h) == 0
}

// MinDeadline returns the earliest registered deadline and true, or the
// zero time and false if the structure is empty.
func (t *Timers) MinDeadline() (time.Time, bool) {
	if len(t.h) == 0 {
		return time.Time{}, false
	}
	return t.h[0].deadline, true
}

// Expire removes and returns every entry whose deadline has passed as of
// now, in deadline order, marking each Event's TimedOut bit.
func (t *Timers) Expire(now time.Time) []*Event {
	var out []*Event
	for len(t.h) > 0 && !t.h[0].deadline.After(now) {
		e := heap.Pop(&t.h).(*timerEntry)
		e.ev.TimerSet = false
		e.ev.TimedOut = true
		e.ev.timerNode = nil
		out = append(out, e.ev)
	}
	return out
}

// PollTimeout computes the poll timeout to use for the next reactor
// iteration per spec.md §4.1 step 1: the minimum deadline minus now,
// clamped non-negative, or a negative duration if the timer structure is
// empty (meaning "no deadline-driven bound").
func (t *Timers) PollTimeout(now time.Time) (time.Duration, bool) {
	d, ok := t.MinDeadline()
	if !ok {
		return 0, false
	}
	rem := d.Sub(now)
	if rem < 0 {
		rem = 0
	}
	return rem, true
}
