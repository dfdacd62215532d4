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
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sabouaram/golib/core/httpparse"
	"github.com/sabouaram/golib/core/phase"
)

// Feed appends freshly read bytes to the request's parse buffer.
func (r *Request) Feed(data []byte) {
	r.buf = append(r.buf, data...)
	r.used += len(data)
}

// ParseRequestLine attempts to parse the request line out of the buffer
// accumulated so far. It returns httpparse.ErrAgain when more bytes are
// needed, ErrorRequestLineTooLarge once the configured limit is exceeded
// without a complete line, or a parse-error CodeError on malformed input.
func (r *Request) ParseRequestLine() error {
	rl, n, err := httpparse.ParseRequestLine(r.buf[:r.used], false, true)
	if err == httpparse.ErrAgain {
		if r.Limits.MaxRequestLineSize > 0 && r.used >= r.Limits.MaxRequestLineSize {
			return ErrorRequestLineTooLarge.Error(nil)
		}
		return httpparse.ErrAgain
	}
	if err != nil {
		return err
	}

	r.RequestLine = rl
	r.HTTP11 = rl.Version == httpparse.Version11
	r.KeepAlive = r.HTTP11
	r.lineConsumed = n
	r.headerCursor = n
	r.State = StateHeaders
	return nil
}

// ParseHeaders drains complete header fields out of the buffer, updating
// the framing/keepalive/host bookkeeping as well-known headers are seen.
// It returns httpparse.ErrAgain when the header section is not yet
// complete, ErrorHeaderSectionTooLarge past the configured limit, or a
// CodeError for malformed input.
func (r *Request) ParseHeaders() error {
	for {
		field, next, done, err := r.headerParser.Next(r.buf[:r.used], r.headerCursor)
		if err == httpparse.ErrAgain {
			if r.Limits.MaxHeaderSize > 0 && r.used-r.lineConsumed >= r.Limits.MaxHeaderSize {
				return ErrorHeaderSectionTooLarge.Error(nil)
			}
			return httpparse.ErrAgain
		}
		if err != nil {
			return err
		}

		r.headerCursor = next

		if done {
			return r.finishHeaders()
		}

		r.Headers = append(r.Headers, field)
		r.classifyHeader(field)
	}
}

func (r *Request) classifyHeader(f httpparse.HeaderField) {
	name := strings.ToLower(string(f.Name.Slice(r.buf)))
	value := string(f.Value.Slice(r.buf))

	switch name {
	case "host":
		r.Host = value

	case "content-length":
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err == nil && n >= 0 {
			r.HasContentLength = true
			r.ContentLength = n
		}

	case "transfer-encoding":
		if strings.Contains(strings.ToLower(value), "chunked") {
			r.Chunked = true
		}

	case "connection":
		for _, tok := range strings.Split(value, ",") {
			switch strings.ToLower(strings.TrimSpace(tok)) {
			case "close":
				r.KeepAlive = false
			case "keep-alive":
				r.KeepAlive = true
			}
		}

	case "expect":
		if strings.EqualFold(strings.TrimSpace(value), "100-continue") {
			r.Expect100 = true
		}
	}
}

func (r *Request) finishHeaders() error {
	if r.HTTP11 && r.Host == "" {
		return ErrorMissingHostHeader.Error(nil)
	}
	if r.Chunked && r.HasContentLength {
		return ErrorConflictingBodyFraming.Error(nil)
	}
	if r.Chunked {
		r.chunkedParser = &httpparse.ChunkedParser{}
	} else if r.HasContentLength {
		r.bodyRemaining = r.ContentLength
	}

	r.State = StateProcessing
	return nil
}

// PendingBytes returns the portion of the accumulated read buffer past
// the parsed header section: request-body bytes that arrived in the
// same read as the headers, or, on a pipelined keep-alive connection,
// the start of the next request. It is only meaningful once ParseHeaders
// has returned successfully.
func (r *Request) PendingBytes() []byte {
	if r.headerCursor >= r.used {
		return nil
	}
	return r.buf[r.headerCursor:r.used]
}

// ShouldSendContinue reports whether a "100 Continue" interim response is
// owed to the client before the request body is read.
func (r *Request) ShouldSendContinue() bool {
	return r.Expect100 && !r.continuedSent
}

// MarkContinueSent records that the 100-continue interim response has
// been written.
func (r *Request) MarkContinueSent() {
	r.continuedSent = true
}

// DiscardBody consumes data as request-body bytes without handing them to
// any content handler, used to drain a body nothing asked to read before
// the connection is reused or closed. It reports how many bytes were
// consumed and whether the body is now fully drained.
func (r *Request) DiscardBody(data []byte) (consumed int, done bool, err error) {
	if r.Chunked {
		if r.chunkedParser == nil {
			r.chunkedParser = &httpparse.ChunkedParser{}
		}
		_, next, perr := r.chunkedParser.Next(data, 0)
		if perr != nil && perr != httpparse.ErrAgain {
			return next, false, perr
		}
		return next, r.chunkedParser.Done(), nil
	}

	if r.HasContentLength {
		n := int64(len(data))
		if n > r.bodyRemaining {
			n = r.bodyRemaining
		}
		r.bodyRemaining -= n
		return int(n), r.bodyRemaining == 0, nil
	}

	return len(data), true, nil
}

// BodyFullyConsumed reports whether the request body (if any) has been
// entirely read or discarded, the precondition spec.md §5 sets for
// reusing the connection without a lingering close.
func (r *Request) BodyFullyConsumed() bool {
	if r.Chunked {
		return r.chunkedParser != nil && r.chunkedParser.Done()
	}
	if r.HasContentLength {
		return r.bodyRemaining == 0
	}
	return true
}

// findConfig is installed as the phase engine's FIND_CONFIG hook: it
// binds the server (by Host) and the location (by path) scopes, honoring
// the auto-redirect rule of spec.md §4.5.
func (r *Request) findConfig(ctx *phase.Context) phase.Result {
	if r.Server == nil {
		srv, err := r.Selector.Select(r.Host)
		if err != nil {
			r.Status = 400
			ctx.Status = 400
			return phase.Error
		}
		r.Server = srv
	}

	path := string(r.RequestLine.Path.Slice(r.buf))
	query := string(r.RequestLine.Query.Slice(r.buf))

	res := r.Server.Locator.Match(path, query)
	if res.AutoRedirect {
		r.AutoRedirectStatus = 301
		r.AutoRedirectPath = res.RedirectPath
		ctx.Status = 301
		return phase.Error
	}
	if res.Location == nil {
		ctx.Status = 404
		return phase.Error
	}

	r.Location = res.Location
	if h, ok := r.Location.Scope.(phase.Handler); ok {
		ctx.ContentHandler = h
	}
	return phase.OK
}

// RunPhases drives the phase engine from wherever the cursor currently
// sits and interprets its verdict: AGAIN suspends (the caller re-enters
// on the next wake), DONE/ERROR finalize the request.
func (r *Request) RunPhases() phase.Result {
	res := r.Engine.Run(r.PCtx)
	switch res {
	case phase.Again:
		return res
	case phase.Done:
		status := r.PCtx.Status
		if status == 0 {
			status = 200
		}
		r.Finalize(status)
	case phase.Error:
		status := r.PCtx.Status
		if status == 0 {
			status = 500
		}
		r.Finalize(status)
	}
	return res
}

// AddResponseHeader appends an outbound header, preserving insertion
// order the way the header filter serialises them.
func (r *Request) AddResponseHeader(name, value string) {
	r.ResponseHeaders = append(r.ResponseHeaders, ResponseHeader{Name: name, Value: value})
}

// Inc adds a reference to this request, e.g. when a subrequest is
// created against it; Dec must be called an equal number of times.
func (r *Request) Inc() {
	atomic.AddInt32(&r.count, 1)
}

// SetBufferedOutput records whether the write filter chain still holds
// unflushed output for this request; finalize_request must not tear down
// the request while this is true (spec.md §5).
func (r *Request) SetBufferedOutput(v bool) {
	if v {
		atomic.StoreInt32(&r.bufferedOutput, 1)
	} else {
		atomic.StoreInt32(&r.bufferedOutput, 0)
	}
}

// Finalize implements finalize_request's idempotent count discipline: it
// decrements the reference count and only proceeds to the terminal
// teardown (access log, keepalive reset, lingering close, or connection
// close) once the count reaches zero and no buffered output remains.
// Calling Finalize again after a no-op decrement (buffered output still
// pending) is the caller's responsibility once the write filter drains.
func (r *Request) Finalize(status int) {
	r.Status = status

	if atomic.AddInt32(&r.count, -1) != 0 {
		return
	}
	if atomic.LoadInt32(&r.bufferedOutput) != 0 {
		atomic.AddInt32(&r.count, 1) // not actually done; restore for the retry
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State == StateClosed || r.State == StateFinalizing || r.State == StateLingeringClose || r.State == StateKeepAliveIdle {
		return
	}
	r.State = StateFinalizing

	r.logAccess()

	switch {
	case r.KeepAlive && r.BodyFullyConsumed() && status < 500:
		r.State = StateKeepAliveIdle
		if r.Conn != nil {
			r.Conn.MarkReuse(true)
		}
	case !r.BodyFullyConsumed():
		r.State = StateLingeringClose
	default:
		r.State = StateClosed
	}
}

func (r *Request) logAccess() {
	if r.Log == nil {
		return
	}
	lg := r.Log()
	if lg == nil {
		return
	}

	method, uri, proto := "-", "-", "HTTP/1.0"
	if r.RequestLine != nil {
		method = string(r.RequestLine.Method.Slice(r.buf))
		uri = string(r.RequestLine.URI.Slice(r.buf))
		if r.HTTP11 {
			proto = "HTTP/1.1"
		}
	}

	lg.Access(r.RemoteAddr, r.RemoteUser, r.Started, time.Since(r.Started), method, uri, proto, r.Status, 0)
}
