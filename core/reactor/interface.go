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

import "time"

// RegisterMode selects level- or edge-triggered delivery for Notifier.Register.
type RegisterMode uint8

const (
	ModeLevel RegisterMode = iota
	ModeEdge
)

// UnregisterFlag carries extra context to Notifier.Unregister.
type UnregisterFlag uint8

const (
	UnregisterNormal UnregisterFlag = iota
	// UnregisterClosing means the connection is being closed: the
	// kernel purges registration on close, so no syscall is needed.
	UnregisterClosing
)

// ReadyEvent is one readiness notification returned by Notifier.Poll.
type ReadyEvent struct {
	FD       int
	Readable bool
	Writable bool
	HangUp   bool
	ErrorBit bool
}

// Notifier is the readiness source the Reactor wraps (spec.md §4.1): an
// edge- or level-triggered multiplexer over file descriptors. The epoll
// implementation lives in notifier_linux.go; callers needing portability
// off Linux can substitute any type satisfying this interface.
type Notifier interface {
	// Register adds fd to the readiness source for the given kind and
	// triggering mode. Idempotent: if fd is already registered the
	// flags are merged.
	Register(fd int, kind EventKind, mode RegisterMode) error
	// Unregister removes fd. If flags contains UnregisterClosing, no
	// syscall is issued.
	Unregister(fd int, flags UnregisterFlag) error
	// Poll blocks for up to timeout or until at least one event is
	// ready, returning the ready events. A negative timeout blocks
	// indefinitely.
	Poll(timeout time.Duration) ([]ReadyEvent, error)
	// Close releases the notifier's own resources (e.g. the epoll fd).
	Close() error
}
