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

package buffer

import "sync"

// linkFreeList is the pool-level free list for chain-link nodes (spec.md
// §4.9: "a global pool-level 'free chain links' list (for the link nodes
// themselves)"). It is shared by every filter tag.
var linkFreeList = sync.Pool{
	New: func() interface{} { return &Link{} },
}

// NewLink allocates a Link carrying buf, reusing a recycled node when one is
// available.
func NewLink(buf *Buf) *Link {
	l := linkFreeList.Get().(*Link)
	l.Buf = buf
	l.Next = nil
	return l
}

// ReleaseLink returns a Link's node to the pool-level free list. The caller
// must have already unlinked it from any chain.
func ReleaseLink(l *Link) {
	if l == nil {
		return
	}
	l.Buf = nil
	l.Next = nil
	linkFreeList.Put(l)
}

// Recycler implements the per-request, per-filter-tag busy/free accounting
// described in spec.md §4.9: Busy holds buffers still referenced downstream;
// Free holds buffers available for reuse by the filter that owns this tag.
//
// Invariant: a buffer is in Busy iff there is at least one byte past its Pos
// that downstream has not yet consumed.
type Recycler struct {
	tag  Tag
	mu   sync.Mutex
	busy *Chain
	free *Chain
}

// NewRecycler creates a Recycler for the given filter tag.
func NewRecycler(tag Tag) *Recycler {
	return &Recycler{tag: tag, busy: &Chain{}, free: &Chain{}}
}

// Track records a link as busy: downstream has not yet consumed all of it.
func (r *Recycler) Track(l *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy.Append(l)
}

// Update walks Busy after a write attempt: links whose buffer has no
// remaining payload are retired — those tagged for this recycler move to
// Free for reuse, everything else is returned to the pool's generic link
// free list. Links still carrying payload stay in Busy.
func (r *Recycler) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stillBusy Chain
	for l := r.busy.PopFront(); l != nil; l = r.busy.PopFront() {
		if l.Buf != nil && !l.Buf.Empty() {
			stillBusy.Append(l)
			continue
		}
		if l.Buf != nil && l.Buf.Tag == r.tag {
			l.Buf.Recycled = true
			r.free.Append(l)
		} else {
			ReleaseLink(l)
		}
	}
	r.busy = &stillBusy
}

// Reuse pops one recycled buffer/link pair from Free, or returns nil if none
// is available (the caller should allocate fresh storage in that case).
func (r *Recycler) Reuse() *Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.free.PopFront()
}

// BusyLen and FreeLen support the buffer-ownership testable property of
// spec.md §8: comparing live-chain counts before and after a write-filter
// call.
func (r *Recycler) BusyLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy.Len()
}

func (r *Recycler) FreeLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.free.Len()
}
