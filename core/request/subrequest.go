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

package request

import (
	"io"
	"sync/atomic"
)

// Chunk is one unit of response output: either an in-memory buffer or a
// file-backed range (spec.md §4.8's "memory buffers and file-backed
// buffers" the write filter scatter-gathers, using sendfile for the
// latter where available). File is an io.ReaderAt rather than a bare
// *os.File so a byte-accounted handle (file/progress.Progress) can back
// a chunk exactly like a plain opened file.
type Chunk struct {
	Buf   []byte
	File  io.ReaderAt
	Off   int64
	Len   int64
	Flush bool // postpone_output override: write even if below batch size
	Last  bool // last_buf: the final chunk of this request's body
}

// Chain is an ordered sequence of output chunks, the unit output filters
// pass to one another (spec.md §4.8/§4.9).
type Chain []Chunk

// PostponedNode is one entry of a request's postponed list (spec.md
// §4.7): either a subrequest awaiting its turn to own the wire, or a
// chain of bytes the parent produced while a subrequest was in progress.
type PostponedNode struct {
	Subrequest *Request
	Output     Chain
}

// subShared is the budget and posted-queue state shared by a main
// request and every subrequest descended from it.
type subShared struct {
	maxSubrequests int32
	subCount       int32
	posted         []*Request
}

// NewSubrequest creates a child request sharing parent's connection,
// selector, logger, and limits but with its own phase cursor, per
// spec.md §4.7. It enforces the configured subrequest budget and starts
// the child NOT owning the wire: its output is deferred into the
// parent's postponed list until its turn comes.
func (r *Request) NewSubrequest(uri, args string, completion func(*Request)) (*Request, error) {
	main := r.mainRequest()

	if main.shared == nil {
		main.shared = &subShared{maxSubrequests: 200}
	}
	if atomic.AddInt32(&main.shared.subCount, 1) > main.shared.maxSubrequests {
		atomic.AddInt32(&main.shared.subCount, -1)
		return nil, ErrorSubrequestBudgetExceeded.Error(nil)
	}

	child := NewRequest(r.Conn, r.Engine, r.Selector, r.Log, r.Limits)
	r.ReleaseActiveWriter()
	child.BecomeActiveWriter()
	child.Parent = r
	child.shared = main.shared
	child.completion = completion
	child.Host = r.Host
	child.Server = r.Server
	child.HTTP11 = r.HTTP11
	child.RemoteAddr = r.RemoteAddr
	child.Output = r.Output
	child.PCtx.InternalRedirect(uri)
	_ = args // args threading into the query string is the caller's responsibility via uri

	r.mu.Lock()
	r.Postponed = append(r.Postponed, &PostponedNode{Subrequest: child})
	r.mu.Unlock()

	main.shared.posted = append(main.shared.posted, child)
	return child, nil
}

func (r *Request) mainRequest() *Request {
	m := r
	for m.Parent != nil {
		m = m.Parent
	}
	return m
}

// IsActiveWriter reports whether this request currently owns the
// connection's wire (spec.md §4.7: "the connection's data pointer always
// indicates which request owns the wire at this instant").
func (r *Request) IsActiveWriter() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeWriter
}

// BecomeActiveWriter grants this request wire ownership.
func (r *Request) BecomeActiveWriter() {
	r.mu.Lock()
	r.activeWriter = true
	r.mu.Unlock()
}

// ReleaseActiveWriter revokes wire ownership, e.g. when swapping to a
// subrequest at the head of the postponed list.
func (r *Request) ReleaseActiveWriter() {
	r.mu.Lock()
	r.activeWriter = false
	r.mu.Unlock()
}

// AppendPostponedOutput defers a chain the request produced while it did
// not own the wire, per the postpone filter's dispatch rule.
func (r *Request) AppendPostponedOutput(c Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.Postponed); n > 0 && r.Postponed[n-1].Subrequest == nil {
		r.Postponed[n-1].Output = append(r.Postponed[n-1].Output, c...)
		return
	}
	r.Postponed = append(r.Postponed, &PostponedNode{Output: c})
}

// Complete implements spec.md §4.7's subrequest completion: invokes the
// completion callback, detaches from the parent's postponed list, hands
// wire ownership back to the parent, and posts the parent to be
// re-woken.
func (r *Request) Complete() {
	if r.completion != nil {
		r.completion(r)
	}
	if r.Parent == nil {
		return
	}

	parent := r.Parent
	parent.mu.Lock()
	for i, n := range parent.Postponed {
		if n.Subrequest == r {
			parent.Postponed = append(parent.Postponed[:i], parent.Postponed[i+1:]...)
			break
		}
	}
	parent.mu.Unlock()

	parent.BecomeActiveWriter()
	r.postToQueue(parent)
}

// Dispatched reports whether the driver has already run this
// subrequest's phases, so a repeated drain of the posted queue does not
// run it twice.
func (r *Request) Dispatched() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subDispatched
}

// MarkDispatched records that the driver has run this subrequest's
// phases once.
func (r *Request) MarkDispatched() {
	r.mu.Lock()
	r.subDispatched = true
	r.mu.Unlock()
}

func (r *Request) postToQueue(target *Request) {
	main := r.mainRequest()
	if main.shared == nil {
		return
	}
	main.shared.posted = append(main.shared.posted, target)
}

// DrainPosted invokes fn for every request queued on the main request's
// posted-request queue, FIFO, per spec.md §4.7's drain rule, then empties
// the queue.
func (r *Request) DrainPosted(fn func(*Request)) {
	main := r.mainRequest()
	if main.shared == nil {
		return
	}
	q := main.shared.posted
	main.shared.posted = nil
	for _, req := range q {
		fn(req)
	}
}
