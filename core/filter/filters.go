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
	"fmt"
	"io"

	"github.com/sabouaram/golib/core/request"
)

// copyInlineThreshold is the file-chunk size below which the copy filter
// materialises the bytes in memory rather than leaving them file-backed
// for the write filter's sendfile path: spec.md §4.8's three-way
// decision (in-memory copy, sendfile passthrough, or split at a range
// boundary) collapses to this single threshold check for small files,
// where the syscall overhead of sendfile outweighs its benefit.
const copyInlineThreshold = 8192

// Postpone dispatches a produced chain based on wire ownership, per
// spec.md §4.7: a request that does not currently own the connection's
// wire defers its output onto its own postponed-output slot instead of
// handing it further down the chain.
func Postpone(next Next) Next {
	return func(r *request.Request, c request.Chain) (Result, error) {
		if !r.IsActiveWriter() {
			r.AppendPostponedOutput(c)
			return OK, nil
		}
		return next(r, c)
	}
}

// Copy materialises small file-backed chunks into memory, leaving larger
// ones file-backed for the write filter's sendfile path.
func Copy(next Next) Next {
	return func(r *request.Request, c request.Chain) (Result, error) {
		out := make(request.Chain, 0, len(c))
		for _, chunk := range c {
			if chunk.File != nil && chunk.Len <= copyInlineThreshold {
				buf := make([]byte, chunk.Len)
				if _, err := chunk.File.ReadAt(buf, chunk.Off); err != nil && err != io.EOF {
					return Error, err
				}
				chunk.Buf = buf
				chunk.File = nil
				chunk.Off = 0
				chunk.Len = 0
			}
			out = append(out, chunk)
		}
		return next(r, out)
	}
}

func chunkSize(c request.Chunk) int64 {
	if c.File != nil {
		return c.Len
	}
	return int64(len(c.Buf))
}

// Chunked wraps each chunk in HTTP/1.1 chunked-transfer framing when the
// response carries no known Content-Length, terminating with the
// zero-length chunk on the chain's last buffer.
func Chunked(next Next) Next {
	return func(r *request.Request, c request.Chain) (Result, error) {
		if !r.HTTP11 || r.ResponseContentLength >= 0 {
			return next(r, c)
		}

		out := make(request.Chain, 0, len(c)*3+1)
		for _, chunk := range c {
			size := chunkSize(chunk)
			if size > 0 {
				out = append(out, request.Chunk{Buf: []byte(fmt.Sprintf("%x\r\n", size))})
				body := chunk
				body.Last = false
				out = append(out, body)
				out = append(out, request.Chunk{Buf: []byte("\r\n")})
			}
			if chunk.Last {
				out = append(out, request.Chunk{Buf: []byte("0\r\n\r\n"), Last: true})
			}
		}
		return next(r, out)
	}
}

func chainLength(c request.Chain) int64 {
	var n int64
	for _, chunk := range c {
		n += chunkSize(chunk)
	}
	return n
}

// sliceChain returns the [start, end] (inclusive) byte range of c,
// splitting or dropping chunks as needed. Both File and Buf chunks are
// supported; file chunks keep their sendfile-eligibility by adjusting
// Off/Len instead of reading the bytes.
func sliceChain(c request.Chain, start, end int64) request.Chain {
	out := make(request.Chain, 0, len(c))
	var pos int64
	for _, chunk := range c {
		size := chunkSize(chunk)
		chunkStart, chunkEnd := pos, pos+size-1
		pos += size

		lo := start
		if lo < chunkStart {
			lo = chunkStart
		}
		hi := end
		if hi > chunkEnd {
			hi = chunkEnd
		}
		if lo > hi {
			continue
		}

		skip := lo - chunkStart
		keep := hi - lo + 1
		if chunk.File != nil {
			chunk.Off += skip
			chunk.Len = keep
		} else {
			chunk.Buf = chunk.Buf[skip : skip+keep]
		}
		out = append(out, chunk)
	}
	if len(out) > 0 {
		out[len(out)-1].Last = true
	}
	return out
}

// Range satisfies a single byte-range request by slicing the chain to
// the requested extent and rewriting the response's status and headers;
// an unsatisfiable range finalizes as 416 per spec.md §4.8. Multi-range
// (multipart/byteranges) requests are out of scope: RequestedRange only
// ever describes a single extent.
func Range(next Next) Next {
	return func(r *request.Request, c request.Chain) (Result, error) {
		if !r.HasRange {
			return next(r, c)
		}

		total := chainLength(c)
		start, end := r.RangeStart, r.RangeEnd
		if end < 0 || end >= total {
			end = total - 1
		}
		if total == 0 || start < 0 || start > end {
			r.Status = 416
			return Error, ErrorInvalidRange.Error(nil)
		}

		sliced := sliceChain(c, start, end)
		r.Status = 206
		r.ResponseContentLength = end - start + 1
		r.AddResponseHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
		return next(r, sliced)
	}
}

// Write is the terminal body filter: it drains a chain to w, using the
// writer's ReaderFrom path (sendfile on Linux when w is a *net.TCPConn and
// the chunk's backing io.ReaderAt is an *os.File) for file-backed chunks
// and a plain Write for in-memory ones.
func Write(w Writer) Next {
	return func(r *request.Request, c request.Chain) (Result, error) {
		for _, chunk := range c {
			if chunk.File != nil {
				sr := io.NewSectionReader(chunk.File, chunk.Off, chunk.Len)
				n, err := w.ReadFrom(sr)
				if err != nil {
					return Error, err
				}
				if n != chunk.Len {
					return Error, ErrorShortWrite.Error(nil)
				}
				continue
			}
			if len(chunk.Buf) == 0 {
				continue
			}
			n, err := w.Write(chunk.Buf)
			if err != nil {
				return Error, err
			}
			if n != len(chunk.Buf) {
				return Error, ErrorShortWrite.Error(nil)
			}
		}
		return OK, nil
	}
}
