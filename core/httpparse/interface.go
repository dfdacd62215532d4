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

package httpparse

// Span is a zero-copy pointer into a caller-owned buffer: [Start, End).
// Every parser in this package records spans rather than copying bytes, so
// the caller decides when (and whether) to materialize a string.
type Span struct {
	Start int
	End   int
}

// Slice resolves the span against buf.
func (s Span) Slice(buf []byte) []byte { return buf[s.Start:s.End] }

// Empty reports whether the span covers zero bytes.
func (s Span) Empty() bool { return s.Start >= s.End }

// Shift translates both ends of the span by delta, used when the
// in-progress header's backing buffer is relocated to a larger one
// (spec.md §4.3 Large-header handling).
func (s Span) Shift(delta int) Span {
	return Span{Start: s.Start + delta, End: s.End + delta}
}

// Version is the parsed HTTP version of a request line.
type Version uint8

const (
	Version09 Version = iota
	Version10
	Version11
)

// URIFlag records a bit set on the request by the request-line parser.
type URIFlag uint8

const (
	// FlagComplexURI is set when the URI contains percent-encoding or a
	// "." / ".." path segment requiring normalization.
	FlagComplexURI URIFlag = 1 << iota
	// FlagQuotedURI is set when the URI contains a percent-encoded octet.
	FlagQuotedURI
	FlagPlusInURI
	FlagSpaceInURI
)

// RequestLine is the parsed result of the request line. All fields are
// spans into the caller's buffer except Version and Flags.
type RequestLine struct {
	Method Span
	URI    Span // the raw request-target, unmodified

	// Absolute-form decomposition; zero spans when origin-form was used.
	Schema Span
	Host   Span
	Port   Span

	Path  Span
	Query Span

	Version Version
	Flags   URIFlag
}

// HasFlag reports whether f is set.
func (r *RequestLine) HasFlag(f URIFlag) bool { return r.Flags&f != 0 }

// HeaderField is one parsed (name, value) pair plus its lowercase hash for
// index-hash lookup against the well-known-header table.
type HeaderField struct {
	Name  Span
	Value Span
	Hash  uint32
}

// ChunkExtent is one chunk's payload span within the buffer that was active
// when the chunk header was parsed. Len == 0 marks the terminating chunk.
type ChunkExtent struct {
	Data Span
	Len  int
}
