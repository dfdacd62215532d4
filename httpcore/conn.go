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

package httpcore

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sabouaram/golib/core/filter"
	"github.com/sabouaram/golib/core/httpparse"
	"github.com/sabouaram/golib/core/phase"
	"github.com/sabouaram/golib/core/reactor"
	"github.com/sabouaram/golib/core/request"
	liberr "github.com/sabouaram/golib/errors"
)

const readBufferSize = 16 * 1024

// driver wires one reactor's accept/read callbacks to the request parser,
// the phase engine, and the output filter chain. One driver is shared by
// every connection a worker's reactor owns.
type driver struct {
	r   *reactor.Reactor
	cfg Config
}

func newDriver(r *reactor.Reactor, cfg Config) *driver {
	return &driver{r: r, cfg: cfg}
}

// connState is the per-connection protocol state stored in
// reactor.Connection.Data.
type connState struct {
	c           *reactor.Connection
	req         *request.Request
	buf         [readBufferSize]byte
	closed      bool
	headerSent  bool
	lingering   bool
	lingerUntil time.Time
}

// accept builds RegisterListener's accept callback for one Listener: it
// performs the non-blocking accept, binds the result into a pool
// connection, and installs the read handler before
// reactor.Reactor.acceptLoop registers the descriptor and posts its
// first read.
func (d *driver) accept(ln *reactor.Listener) func() (*reactor.Connection, error) {
	return func() (*reactor.Connection, error) {
		raw, err := ln.Accept()
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}

		c, berr := reactor.BindAccepted(d.r.Pool(), raw)
		if berr != nil {
			_ = raw.Close()
			return nil, berr
		}

		cs := &connState{c: c}
		cs.req = d.newRequest(c)
		c.Data = cs
		c.Read.Handler = d.onReadable
		d.r.SetTimer(&c.Read, time.Now().Add(d.cfg.readTimeout()))
		return c, nil
	}
}

func (d *driver) newRequest(c *reactor.Connection) *request.Request {
	r := request.NewRequest(c, d.cfg.Engine, d.cfg.Selector, d.cfg.Log, d.cfg.Limits)
	r.Output = d.emit
	return r
}

// onReadable is every connection's Read.Handler. It performs one read,
// feeds whatever arrived to drive (or, during a lingering close, simply
// discards it), and rearms the descriptor for the next event unless the
// connection was closed along the way.
func (d *driver) onReadable(c *reactor.Connection) {
	cs, _ := c.Data.(*connState)
	if cs == nil {
		d.r.CloseConn(c)
		return
	}

	timedOut := c.Read.TimedOut
	c.Read.TimedOut = false
	if timedOut {
		d.r.CloseConn(c)
		return
	}

	n, err := c.Raw.Read(cs.buf[:])
	if n > 0 && !cs.lingering {
		d.drive(cs, cs.buf[:n])
	}

	if err != nil {
		d.r.CloseConn(c)
		return
	}
	if cs.closed {
		return
	}

	deadline := time.Now().Add(d.cfg.readTimeout())
	if cs.lingering {
		deadline = cs.lingerUntil
	}
	d.r.SetTimer(&c.Read, deadline)
	if rerr := d.r.RegisterConn(c, &c.Read, reactor.ModeEdge); rerr != nil {
		d.r.CloseConn(c)
	}
}

// drive feeds pending to the connection's current request, advancing it
// through request-line, header, and body parsing and, once a message is
// complete, through the phase engine. A keepalive request that finishes
// with bytes still left over (a pipelined next request arriving in the
// same read) loops straight into a fresh request instead of waiting for
// another readiness notification.
func (d *driver) drive(cs *connState, pending []byte) {
	for {
		r := cs.req
		if r == nil {
			if len(pending) == 0 {
				return
			}
			r = d.newRequest(cs.c)
			cs.req = r
			cs.headerSent = false
		}

		switch r.State {
		case request.StateWaitRequest, request.StateRequestLine:
			r.Feed(pending)
			pending = nil
			if err := r.ParseRequestLine(); err != nil {
				if err == httpparse.ErrAgain {
					return
				}
				d.fail(cs, r, err)
				return
			}

		case request.StateHeaders:
			r.Feed(pending)
			pending = nil
			if err := r.ParseHeaders(); err != nil {
				if err == httpparse.ErrAgain {
					return
				}
				d.fail(cs, r, err)
				return
			}
			if r.State == request.StateProcessing {
				pending = r.PendingBytes()
				if r.ShouldSendContinue() {
					d.writeContinue(cs.c, r)
				}
			}

		case request.StateProcessing:
			consumed, done, err := r.DiscardBody(pending)
			if err != nil {
				d.fail(cs, r, err)
				return
			}
			pending = pending[consumed:]
			if !done {
				return
			}

			res := d.runContent(r)
			if res == phase.Again {
				return
			}

			d.finishResponse(cs, r)
			keepAlive := r.State == request.StateKeepAliveIdle
			d.settle(cs, r)
			if !keepAlive {
				return
			}
			cs.req = nil

		default:
			return
		}
	}
}

// runContent drives r's phase engine to completion, running any
// subrequest a content handler posts along the way and retrying r once
// each one finishes. A handler that wants a subrequest's bytes on the
// wire before its own remaining output (spec.md §4.7/§8's D0‖S1‖D1
// ordering) calls Request.NewSubrequest and returns phase.Again; runContent
// is what actually drives that subrequest and calls Complete on it,
// rather than leaving the handoff for a caller to perform by hand.
func (d *driver) runContent(r *request.Request) phase.Result {
	for {
		res := r.RunPhases()
		if res != phase.Again {
			return res
		}
		if !d.driveSubrequests(r) {
			return res
		}
	}
}

// driveSubrequests runs every subrequest posted since the last drain to
// completion, recursing into whatever each one posts in turn (a
// subrequest of a subrequest), and reports whether it drove at least
// one so runContent can tell a subrequest-caused Again from any other.
func (d *driver) driveSubrequests(r *request.Request) bool {
	drove := false
	r.DrainPosted(func(req *request.Request) {
		if req == r || req.Dispatched() {
			return
		}
		req.MarkDispatched()
		req.RunPhases()
		d.driveSubrequests(req)
		req.Complete()
		drove = true
	})
	return drove
}

// finishResponse guarantees a syntactically complete response is on the
// wire even when nothing called Request.Emit while the phase engine ran
// (no content handler registered for this location, or an error status
// set before CONTENT was ever reached).
func (d *driver) finishResponse(cs *connState, r *request.Request) {
	if cs.headerSent {
		return
	}

	body := defaultErrorBody(r.Status)
	r.ResponseContentLength = int64(len(body))
	if len(body) > 0 {
		r.AddResponseHeader("Content-Type", "text/plain; charset=utf-8")
	}
	_, _ = r.Emit(request.Chain{{Buf: body, Last: true}})
}

func defaultErrorBody(status int) []byte {
	if status == 0 {
		status = 200
	}
	if status < 300 {
		return nil
	}
	return []byte(fmt.Sprintf("%d %s\n", status, filter.StatusText(status)))
}

// fail answers a request that never made it out of parsing with a
// minimal error response, then closes the connection: a malformed
// request line or header block leaves the framing state too uncertain
// to trust a subsequent request on the same connection.
func (d *driver) fail(cs *connState, r *request.Request, err error) {
	r.Status = statusForError(err)
	r.KeepAlive = false
	cs.headerSent = false

	body := defaultErrorBody(r.Status)
	r.ResponseContentLength = int64(len(body))
	r.AddResponseHeader("Content-Type", "text/plain; charset=utf-8")
	_, _ = r.Emit(request.Chain{{Buf: body, Last: true}})

	d.r.CloseConn(cs.c)
	cs.closed = true
}

func statusForError(err error) int {
	ce, ok := err.(liberr.Error)
	if !ok {
		return 400
	}
	switch ce.GetCode() {
	case request.ErrorRequestLineTooLarge, request.ErrorHeaderSectionTooLarge:
		return 431
	default:
		return 400
	}
}

// settle acts on the connection state Request.Finalize decided: keep the
// wire open and idle for the next pipelined request, drain the
// unconsumed body before closing (lingering_close), or close outright.
func (d *driver) settle(cs *connState, r *request.Request) {
	switch r.State {
	case request.StateKeepAliveIdle:
		cs.c.MarkReuse(true)
		d.r.Pool().MarkIdle(cs.c)

	case request.StateLingeringClose:
		cs.req = nil
		cs.lingering = true
		cs.lingerUntil = time.Now().Add(defaultLingerTimeout)
		d.r.SetTimer(&cs.c.Read, cs.lingerUntil)

	default:
		d.r.CloseConn(cs.c)
		cs.closed = true
	}
}

// writeContinue answers an Expect: 100-continue request line before its
// body is read, per spec.md §10's supplemented Expect handling.
func (d *driver) writeContinue(c *reactor.Connection, r *request.Request) {
	_, _ = c.Raw.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	r.MarkContinueSent()
}

// emit is installed as every Request's Output: it prepends the status
// line and headers on the first call for a given response, then drains
// the chain through the Postpone/Copy/Chunked/Range/Write filters onto
// the connection's raw net.Conn.
func (d *driver) emit(r *request.Request, c request.Chain) (request.EmitResult, error) {
	cs, ok := r.Conn.Data.(*connState)
	if !ok || cs == nil {
		return request.EmitError, nil
	}

	if !cs.headerSent {
		hdr, err := filter.Header(r)
		if err != nil {
			return request.EmitError, err
		}
		c = append(hdr, c...)
		cs.headerSent = true
	}

	next := filter.NewChain(filter.Write(asWriter(r.Conn.Raw))).
		Use(filter.Postpone).
		Use(filter.Copy).
		Use(filter.Chunked).
		Use(filter.Range).
		Build()

	res, err := next(r, c)
	return request.EmitResult(res), err
}

// asWriter adapts raw to filter.Writer. *net.TCPConn already implements
// io.ReaderFrom (the Go runtime lowers it to sendfile(2) on Linux);
// *tls.Conn does not, so it falls back to a plain io.Copy.
func asWriter(raw net.Conn) filter.Writer {
	if w, ok := raw.(filter.Writer); ok {
		return w
	}
	return readFromWriter{raw}
}

type readFromWriter struct {
	io.Writer
}

func (w readFromWriter) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(w.Writer, r)
}
