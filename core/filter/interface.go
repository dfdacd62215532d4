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

package filter

import (
	"io"

	"github.com/sabouaram/golib/core/request"
)

// Result is a filter's verdict, per spec.md §4.8's "Filter invariants".
type Result uint8

const (
	OK Result = iota
	Again
	Error
)

// Next is the function signature every filter calls to forward a chain
// (possibly transformed) to the next filter down the chain.
type Next func(r *request.Request, c request.Chain) (Result, error)

// BodyFilter is one body-filter-chain link: it wraps a "next" function
// captured at Build time and returns the function that becomes the new
// head, exactly the "capture the current chain head, install self as
// the new head" composition spec.md §4.8 describes.
type BodyFilter func(next Next) Next

// HeaderFilter serialises a request's response status line and headers
// into a chain handed to the body filter chain, so header and body are
// written through the same low-level path.
type HeaderFilter func(r *request.Request) (request.Chain, error)

// Writer is the terminal sink the write filter drains into: an
// io.Writer for in-memory chunks, plus an optional zero-copy path for
// file-backed chunks. net.TCPConn satisfies both (io.Writer directly,
// and io.ReaderFrom — which the Go runtime implements with sendfile(2)
// on Linux when the source is an *os.File, the idiomatic Go equivalent
// of spec.md §4.8's "OS sendfile primitive").
type Writer interface {
	io.Writer
	io.ReaderFrom
}

// Chain composes the body filter chain in registration order: Build
// walks filters back to front so filters[0] becomes the outermost
// (first-called) wrapper and terminal is always the innermost call.
type Chain struct {
	filters  []BodyFilter
	terminal Next
}

// NewChain creates a body-filter chain whose innermost link is terminal
// (normally the write filter).
func NewChain(terminal Next) *Chain {
	return &Chain{terminal: terminal}
}

// Use appends a filter to the chain, in call order: filters appended
// earlier run earlier.
func (c *Chain) Use(f BodyFilter) *Chain {
	c.filters = append(c.filters, f)
	return c
}

// Build composes the registered filters around the terminal function.
func (c *Chain) Build() Next {
	fn := c.terminal
	for i := len(c.filters) - 1; i >= 0; i-- {
		fn = c.filters[i](fn)
	}
	return fn
}
