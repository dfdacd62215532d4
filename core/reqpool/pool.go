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

import "sync"

// bufferClasses are the size classes buffers are pooled under, chosen to
// cover the request-line/header "large buffer" sizes of spec.md §4.3
// without over-allocating for the common small case.
var bufferClasses = []int{512, 2048, 8192, 65536}

var bufferPools = newBufferPools()

func newBufferPools() []*sync.Pool {
	pools := make([]*sync.Pool, len(bufferClasses))
	for i, size := range bufferClasses {
		size := size
		pools[i] = &sync.Pool{
			New: func() interface{} {
				return make([]byte, 0, size)
			},
		}
	}
	return pools
}

func classFor(n int) int {
	for i, size := range bufferClasses {
		if n <= size {
			return i
		}
	}
	return -1
}

// GetBuffer returns a []byte with at least n bytes of capacity, reused
// from a size-classed sync.Pool where n fits a class and allocated fresh
// otherwise (spec.md §3's pool/arena, rendered as pooled allocation per
// SPEC_FULL.md §3 rather than a hand-rolled bump allocator). Call
// PutBuffer to return it once the arena destroys.
func GetBuffer(n int) []byte {
	if c := classFor(n); c >= 0 {
		buf := bufferPools[c].Get().([]byte)
		return buf[:0]
	}
	return make([]byte, 0, n)
}

// PutBuffer returns buf to its size class's pool. Buffers whose capacity
// does not match a class (oversized, one-off allocations) are dropped
// for the GC to collect instead of being pooled.
func PutBuffer(buf []byte) {
	c := classFor(cap(buf))
	if c < 0 || cap(buf) != bufferClasses[c] {
		return
	}
	//nolint:staticcheck // intentionally pooling the backing array, not its current length
	bufferPools[c].Put(buf[:0])
}

// PooledBuffer ties a pooled []byte to an Arena: the buffer is returned
// to its pool automatically when the arena is destroyed, the common
// case for a request's header/line scratch buffer.
func PooledBuffer(a *Arena, n int) []byte {
	buf := GetBuffer(n)
	a.AddCleanup(func() { PutBuffer(buf) })
	return buf
}
