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

// HeaderOptions toggles the two configurable tolerances named in spec.md
// §4.3.
type HeaderOptions struct {
	AllowUnderscoresInNames bool
	IgnoreInvalidHeaders    bool
}

// headerState is the obsolete-LWS-tolerant header-field FSM's cursor. A
// HeaderParser is reused across every header of one request; Reset rewinds
// it to scan a new buffer from a given offset.
type headerState uint8

const (
	hsName headerState = iota
	hsNameEnd
	hsSpaceBeforeValue
	hsValue
	hsValueLWS // inside an obsolete line-folded continuation
	hsCR
	hsLF
	hsAlmostDone
)

// HeaderParser scans header fields one at a time out of a growing buffer,
// the same resume-by-rescan discipline as ParseRequestLine: callers always
// pass the buffer from a fixed start offset and call again with more bytes
// on ErrAgain.
type HeaderParser struct {
	Opts HeaderOptions
}

// Next parses one header field starting at buf[start:]. It returns the
// field, the offset just past its terminating LF, and ok=true. When the
// first thing at start is a bare CRLF (or LF), it returns done=true: the
// header block is complete (HeadersDone in spec.md §4.4). On a short
// buffer it returns ErrAgain.
func (p *HeaderParser) Next(buf []byte, start int) (field HeaderField, next int, done bool, err error) {
	n := len(buf)
	i := start

	if i < n && buf[i] == '\r' {
		i++
	}
	if i < n && buf[i] == '\n' {
		return HeaderField{}, i + 1, true, nil
	}
	if i >= n {
		return HeaderField{}, 0, false, ErrAgain
	}

	nameStart := i
	var hash uint32
	for i < n {
		c := buf[i]
		if c == ':' {
			break
		}
		if c == '\r' || c == '\n' {
			if p.Opts.IgnoreInvalidHeaders {
				// skip the malformed line and resume at the next one
				j := i
				if j < n && buf[j] == '\r' {
					j++
				}
				if j < n && buf[j] == '\n' {
					return p.Next(buf, j+1)
				}
				return HeaderField{}, 0, false, ErrAgain
			}
			return HeaderField{}, 0, false, ErrorInvalidHeader.Error(nil)
		}
		if !isHeaderNameChar(c, p.Opts.AllowUnderscoresInNames) {
			return HeaderField{}, 0, false, ErrorInvalidHeader.Error(nil)
		}
		hash = hash*31 + uint32(lower(c))
		i++
	}
	if i >= n {
		return HeaderField{}, 0, false, ErrAgain
	}
	nameEnd := i
	i++ // skip ':'

	for i < n && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}

	valueStart := i
	for {
		for i < n && buf[i] != '\r' && buf[i] != '\n' {
			i++
		}
		if i >= n {
			return HeaderField{}, 0, false, ErrAgain
		}
		valueEnd := i
		j := i
		if j < n && buf[j] == '\r' {
			j++
		}
		if j >= n {
			return HeaderField{}, 0, false, ErrAgain
		}
		if buf[j] != '\n' {
			return HeaderField{}, 0, false, ErrorInvalidHeader.Error(nil)
		}
		j++

		// obsolete-LWS: a continuation line starts with SP or HTAB.
		if j < n && (buf[j] == ' ' || buf[j] == '\t') {
			i = j
			for i < n && (buf[i] == ' ' || buf[i] == '\t') {
				i++
			}
			continue
		}

		return HeaderField{
			Name:  Span{Start: nameStart, End: nameEnd},
			Value: Span{Start: valueStart, End: trimTrailingWS(buf, valueStart, valueEnd)},
			Hash:  hash,
		}, j, false, nil
	}
}

func trimTrailingWS(buf []byte, start, end int) int {
	for end > start && (buf[end-1] == ' ' || buf[end-1] == '\t') {
		end--
	}
	return end
}

func isHeaderNameChar(c byte, allowUnderscore bool) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-':
		return true
	case c == '_':
		return allowUnderscore
	default:
		return false
	}
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
