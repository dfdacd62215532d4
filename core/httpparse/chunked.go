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

// chunkedState tracks progress across calls to ChunkedParser.Next, since a
// chunk's payload routinely straddles successive reads.
type chunkedState uint8

const (
	csSize chunkedState = iota
	csSizeExt
	csSizeCR
	csData
	csDataCR
	csDataLF
	csTrailer
	csDone
)

// ChunkedParser implements the standard chunked transfer-coding parser of
// spec.md §4.3. It is stateful across calls: feed it successive buffers
// (or the same growing buffer, advancing start) and it resumes exactly
// where the previous call left off, correctly handling a chunk payload
// that straddles a read boundary.
type ChunkedParser struct {
	state   chunkedState
	size    int64
	trailer []HeaderField
}

// Done reports whether the terminating zero-length chunk (and its
// trailer, if any) has been consumed.
func (p *ChunkedParser) Done() bool { return p.state == csDone }

// Trailer returns any trailer fields collected after the zero-length
// chunk, valid once Done reports true.
func (p *ChunkedParser) Trailer() []HeaderField { return p.trailer }

// Next consumes as much of buf[start:] as forms complete chunk-size lines,
// CRLFs, and data; it returns the data extents found on this call and the
// offset just past the consumed bytes. When exactly one data extent is
// in progress and buf runs out mid-payload, Next returns what it has and
// an offset that resumes the same chunk directly into its remaining byte
// count on the next call.
func (p *ChunkedParser) Next(buf []byte, start int) (extents []ChunkExtent, next int, err error) {
	i := start
	n := len(buf)
	hp := &HeaderParser{}

	for i < n && p.state != csDone {
		switch p.state {
		case csSize:
			j := i
			var v int64
			digits := 0
			for j < n && isHexDigit(buf[j]) {
				v = v*16 + int64(hexDigitVal(buf[j]))
				j++
				digits++
			}
			if j >= n {
				return extents, i, ErrAgain
			}
			if digits == 0 {
				return extents, i, ErrorInvalidChunked.Error(nil)
			}
			p.size = v
			i = j
			p.state = csSizeExt

		case csSizeExt:
			for i < n && buf[i] != '\r' && buf[i] != '\n' {
				i++ // chunk extensions (";name=value") are skipped verbatim
			}
			if i >= n {
				return extents, i, ErrAgain
			}
			p.state = csSizeCR

		case csSizeCR:
			if buf[i] == '\r' {
				i++
			}
			if i >= n {
				return extents, i, ErrAgain
			}
			if buf[i] != '\n' {
				return extents, i, ErrorInvalidChunked.Error(nil)
			}
			i++
			if p.size == 0 {
				p.state = csTrailer
			} else {
				p.state = csData
			}

		case csData:
			avail := int64(n - i)
			take := p.size
			if avail < take {
				take = avail
			}
			if take > 0 {
				extents = append(extents, ChunkExtent{Data: Span{Start: i, End: i + int(take)}, Len: int(take)})
				i += int(take)
				p.size -= take
			}
			if p.size > 0 {
				return extents, i, ErrAgain
			}
			p.state = csDataCR

		case csDataCR:
			if i >= n {
				return extents, i, ErrAgain
			}
			if buf[i] == '\r' {
				i++
			}
			if i >= n {
				return extents, i, ErrAgain
			}
			p.state = csDataLF
			fallthrough

		case csDataLF:
			if i >= n {
				return extents, i, ErrAgain
			}
			if buf[i] != '\n' {
				return extents, i, ErrorInvalidChunked.Error(nil)
			}
			i++
			p.state = csSize

		case csTrailer:
			f, next2, done, herr := hp.Next(buf, i)
			if herr != nil {
				return extents, i, herr
			}
			i = next2
			if done {
				p.state = csDone
				break
			}
			p.trailer = append(p.trailer, f)
		}
	}

	return extents, i, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexDigitVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
