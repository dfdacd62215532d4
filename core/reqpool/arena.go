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

package reqpool

import (
	"context"
	"sync"
	"sync/atomic"
)

// Arena is a request's pool root (spec.md §3): a list of cleanup
// handlers run in reverse order when the request is torn down, plus the
// pooled allocators of pool.go. A subrequest shares its parent's arena
// rather than owning one, since spec.md §4.7 roots a subrequest's
// allocations at the main request.
type Arena struct {
	mu       sync.Mutex
	cleanups []func()
	done     atomic.Bool
}

// NewArena returns an empty arena. If ctx is non-nil, the arena destroys
// itself automatically when ctx is done — the connection-level context
// cancelling out from under an in-flight request, mirroring
// ioutils/mapCloser's context-watching Closer.
func NewArena(ctx context.Context) *Arena {
	a := &Arena{}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			a.Destroy()
		}()
	}
	return a
}

// AddCleanup registers fn to run when the arena is destroyed. If the
// arena has already been destroyed, fn runs immediately.
func (a *Arena) AddCleanup(fn func()) {
	if fn == nil {
		return
	}
	if a.done.Load() {
		fn()
		return
	}

	a.mu.Lock()
	if a.done.Load() {
		a.mu.Unlock()
		fn()
		return
	}
	a.cleanups = append(a.cleanups, fn)
	a.mu.Unlock()
}

// Destroy runs every registered cleanup in reverse registration order.
// It is idempotent: calling it again after the first call is a no-op.
func (a *Arena) Destroy() {
	if !a.done.CompareAndSwap(false, true) {
		return
	}

	a.mu.Lock()
	cleanups := a.cleanups
	a.cleanups = nil
	a.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Destroyed reports whether Destroy has already run.
func (a *Arena) Destroyed() bool {
	return a.done.Load()
}
