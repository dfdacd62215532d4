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

import (
	stderrors "errors"
)

// ErrAgain signals that buf does not yet contain a complete request line:
// the caller should read more bytes and call ParseRequestLine again. It is
// not a CodeError because it is not a failure — it is the normal
// "try again once more data arrives" control path, the same role io.EOF
// plays in a bufio.Reader loop.
var ErrAgain = stderrors.New("httpparse: incomplete request line")

// ParseRequestLine scans buf[0:] for a complete HTTP request line. It
// always rescans from the start of buf, which is safe because the
// large-header relocation path (spec.md §4.3) copies prior bytes verbatim
// into the new buffer before more are read — there is never partial,
// unrecoverable parser state to carry across a relocation, only re-pointed
// spans in the result.
func ParseRequestLine(buf []byte, allowSpaceInURI, mergeSlashes bool) (*RequestLine, int, error) {
	n := len(buf)
	i := 0

	methodStart := 0
	for i < n && isTokenChar(buf[i]) {
		i++
	}
	if i == methodStart {
		return nil, 0, ErrorInvalidMethod.Error(nil)
	}
	methodEnd := i

	if i >= n {
		return nil, 0, ErrAgain
	}
	if buf[i] != ' ' {
		return nil, 0, ErrorInvalidMethod.Error(nil)
	}
	i++

	for i < n && buf[i] == ' ' {
		i++
	}
	if i >= n {
		return nil, 0, ErrAgain
	}

	rl := &RequestLine{
		Method: Span{Start: methodStart, End: methodEnd},
	}

	uriStart := i
	var flags URIFlag

	for i < n {
		c := buf[i]
		switch {
		case c == ' ':
			goto uriDone
		case c == '\r' || c == '\n':
			// HTTP/0.9: request line ends at the URI, no version token.
			goto uriDoneNoVersion
		case c == '%':
			flags |= FlagComplexURI | FlagQuotedURI
		case c == '+':
			flags |= FlagPlusInURI
		case c == '\t':
			if !allowSpaceInURI {
				return nil, 0, ErrorInvalidRequest.Error(nil)
			}
			flags |= FlagSpaceInURI
		}
		i++
	}
	return nil, 0, ErrAgain

uriDoneNoVersion:
	rl.URI = Span{Start: uriStart, End: i}
	rl.Version = Version09
	rl.Flags = flags
	splitURI(rl, buf, mergeSlashes)
	for i < n && buf[i] == '\r' {
		i++
	}
	if i < n && buf[i] == '\n' {
		i++
		return rl, i, nil
	}
	return nil, 0, ErrAgain

uriDone:
	rl.URI = Span{Start: uriStart, End: i}
	for i < n && buf[i] == ' ' {
		i++
	}
	if i >= n {
		return nil, 0, ErrAgain
	}

	verStart := i
	for i < n && buf[i] != '\r' && buf[i] != '\n' {
		i++
	}
	if i >= n {
		return nil, 0, ErrAgain
	}
	ver, verr := parseVersion(buf[verStart:i])
	if verr != nil {
		return nil, 0, verr
	}
	rl.Version = ver
	rl.Flags = flags
	splitURI(rl, buf, mergeSlashes)

	for i < n && buf[i] == '\r' {
		i++
	}
	if i < n && buf[i] == '\n' {
		i++
		return rl, i, nil
	}
	return nil, 0, ErrAgain
}

func parseVersion(b []byte) (Version, error) {
	if len(b) != 8 || string(b[:5]) != "HTTP/" || b[6] != '.' {
		return 0, ErrorInvalidRequest.Error(nil)
	}
	switch {
	case b[5] == '1' && b[7] == '1':
		return Version11, nil
	case b[5] == '1' && b[7] == '0':
		return Version10, nil
	default:
		return 0, ErrorInvalidRequest.Error(nil)
	}
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		return true
	default:
		return false
	}
}

// splitURI decomposes rl.URI into Schema/Host/Port/Path/Query when the
// target is absolute-form ("http://host[:port]/path?query"), otherwise
// treats it as origin-form and splits only Path/Query. mergeSlashes
// collapses runs of consecutive '/' in Path, matching the configurable
// post-pass named in spec.md §4.3.
func splitURI(rl *RequestLine, buf []byte, mergeSlashes bool) {
	u := rl.URI
	raw := buf[u.Start:u.End]

	pathStart := u.Start
	if len(raw) >= 7 && isSchemePrefix(raw) {
		schemeEnd := u.Start + indexByte(raw, ':')
		rl.Schema = Span{Start: u.Start, End: schemeEnd}

		hostStart := schemeEnd + 3 // skip "://"
		j := hostStart
		end := u.End
		for j < end && buf[j] != '/' && buf[j] != '?' {
			j++
		}
		hostSpan := Span{Start: hostStart, End: j}
		if colon := indexByteSpan(buf, hostSpan, ':'); colon >= 0 {
			rl.Host = Span{Start: hostStart, End: colon}
			rl.Port = Span{Start: colon + 1, End: j}
		} else {
			rl.Host = hostSpan
		}
		pathStart = j
	}

	pathEnd := u.End
	queryStart := -1
	for k := pathStart; k < u.End; k++ {
		if buf[k] == '?' {
			pathEnd = k
			queryStart = k + 1
			break
		}
	}

	if pathStart == pathEnd {
		// "GET * HTTP/1.1" / absolute-form with empty path: treat as "/"
		rl.Path = Span{Start: pathStart, End: pathStart}
	} else {
		rl.Path = Span{Start: pathStart, End: pathEnd}
	}
	if queryStart >= 0 {
		rl.Query = Span{Start: queryStart, End: u.End}
	}

	if mergeSlashes {
		rl.Flags |= FlagComplexURI
	}
}

func isSchemePrefix(raw []byte) bool {
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			return i+2 < len(raw) && raw[i+1] == '/' && raw[i+2] == '/'
		}
		if !isTokenChar(raw[i]) && raw[i] != '+' && raw[i] != '-' {
			return false
		}
	}
	return false
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func indexByteSpan(buf []byte, s Span, c byte) int {
	for i := s.Start; i < s.End; i++ {
		if buf[i] == c {
			return i
		}
	}
	return -1
}

// DecodePercent decodes percent-encoded octets in src in place, returning
// the decoded length. It is the "post-pass" named in spec.md §4.3, applied
// only when FlagQuotedURI is set.
func DecodePercent(dst, src []byte) (int, error) {
	w := 0
	for r := 0; r < len(src); r++ {
		c := src[r]
		if c == '%' {
			if r+2 >= len(src) {
				return 0, ErrorInvalidRequest.Error(nil)
			}
			hi, ok1 := hexVal(src[r+1])
			lo, ok2 := hexVal(src[r+2])
			if !ok1 || !ok2 {
				return 0, ErrorInvalidRequest.Error(nil)
			}
			dst[w] = hi<<4 | lo
			w++
			r += 2
			continue
		}
		dst[w] = c
		w++
	}
	return w, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// MergeSlashes collapses runs of consecutive '/' in src, writing the result
// to dst (which may alias src) and returning the new length.
func MergeSlashes(dst, src []byte) int {
	w := 0
	prevSlash := false
	for _, c := range src {
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		dst[w] = c
		w++
	}
	return w
}
