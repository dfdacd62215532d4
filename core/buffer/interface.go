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

import (
	"os"

	liberr "github.com/sabouaram/golib/errors"
)

// Kind identifies where a Buf's bytes live. Exactly one kind is set per Buf.
type Kind uint8

const (
	// KindTemporary is a writable, pool-owned memory buffer.
	KindTemporary Kind = iota
	// KindMemory is a read-only reference to memory owned elsewhere.
	KindMemory
	// KindMMap is a memory-mapped region.
	KindMMap
	// KindFile is a file descriptor + offset + length.
	KindFile
	// KindSpecial carries no payload: last_buf / last_in_chain / flush / sync.
	KindSpecial
)

// Tag identifies which filter's reuse pool a Buf or Link belongs to, so that
// Busy/Free accounting (spec.md §4.9) can be kept per-filter.
type Tag uint16

const (
	TagNone Tag = iota
	TagCopy
	TagPostpone
	TagChunked
	TagRange
	TagWrite
)

// Buf is a single contiguous byte region. pos <= last <= end always holds for
// memory-backed buffers; file_pos <= file_last always holds for file-backed
// buffers. Recycled buffers are zeroed of payload but keep their backing
// storage for reuse.
type Buf struct {
	Kind Kind
	Tag  Tag

	// Memory-backed fields. Mem is the backing slice; Pos/Last/End are
	// offsets into it ([Pos:Last] is the unread payload, End is capacity).
	Mem  []byte
	Pos  int
	Last int
	End  int

	// File-backed fields.
	File     *os.File
	FilePos  int64
	FileLast int64

	// Sentinel bits. A buffer carrying any of these need not carry payload.
	LastBuf     bool // this is the last buffer of the whole response
	LastInChain bool // this is the last buffer of this particular chain
	Flush       bool // force a write even if below the postpone threshold
	Sync        bool // synchronization marker, no payload movement implied
	Recycled    bool // has been through the free-list at least once
}

// Len returns the number of unread payload bytes.
func (b *Buf) Len() int {
	if b == nil {
		return 0
	}
	switch b.Kind {
	case KindFile:
		return int(b.FileLast - b.FilePos)
	default:
		return b.Last - b.Pos
	}
}

// Empty reports whether the buffer has no unread payload and is not one of
// the no-payload sentinel markers (those are "empty" by construction but are
// never pruned by the busy/free pass because they still carry signaling
// information downstream).
func (b *Buf) Empty() bool {
	return b != nil && b.Len() == 0
}

// Validate checks the buffer invariants from spec.md §3.
func (b *Buf) Validate() liberr.Error {
	switch b.Kind {
	case KindFile:
		if b.FilePos > b.FileLast {
			return ErrorBufferFileRange.Error(nil)
		}
	case KindTemporary, KindMemory, KindMMap:
		if !(b.Pos <= b.Last && b.Last <= b.End) {
			return ErrorBufferInvalidKind.Error(nil)
		}
	}
	return nil
}

// Link is a single node of a Chain: a Buf paired with the next Link. Chains
// are the universal currency between filters; a Link belongs to exactly one
// live chain at a time.
type Link struct {
	Buf  *Buf
	Next *Link
}

// Chain is a singly-linked list of Links headed by Head.
type Chain struct {
	Head *Link
}

// Empty reports whether the chain has no links.
func (c *Chain) Empty() bool {
	return c == nil || c.Head == nil
}

// Append adds a Link (and everything reachable from it) to the tail of the
// chain. Ownership of l transfers to this chain.
func (c *Chain) Append(l *Link) {
	if l == nil {
		return
	}
	if c.Head == nil {
		c.Head = l
		return
	}
	cur := c.Head
	for cur.Next != nil {
		cur = cur.Next
	}
	cur.Next = l
}

// PopFront removes and returns the first link of the chain, or nil if empty.
func (c *Chain) PopFront() *Link {
	if c.Head == nil {
		return nil
	}
	l := c.Head
	c.Head = l.Next
	l.Next = nil
	return l
}

// Len returns the number of links currently in the chain.
func (c *Chain) Len() int {
	n := 0
	for l := c.Head; l != nil; l = l.Next {
		n++
	}
	return n
}
