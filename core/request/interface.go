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
	"sync"
	"time"

	"github.com/sabouaram/golib/core/httpparse"
	"github.com/sabouaram/golib/core/location"
	"github.com/sabouaram/golib/core/phase"
	"github.com/sabouaram/golib/core/reactor"
	liblog "github.com/sabouaram/golib/logger"
)

// State is the request's position in spec.md §4.4's lifecycle.
type State uint8

const (
	StateWaitRequest State = iota
	StateRequestLine
	StateHeaders
	StateProcessing
	StateWriting
	StateFinalizing
	StateKeepAliveIdle
	StateLingeringClose
	StateClosed
)

// Limits bounds the resources a single request may consume while being
// parsed, mirroring the "large buffer" and budget knobs spec.md §4.3/§4.6
// call out.
type Limits struct {
	MaxRequestLineSize int
	MaxHeaderSize      int
	URIChangeBudget    int
}

// Request is one HTTP request's worth of parsing and phase-engine state,
// bound to a connection for its lifetime (spec.md §4.4). A keepalive
// connection creates a fresh Request for each subsequent message; a
// subrequest shares the parent's Conn but gets its own Request and its
// own phase.Context.
type Request struct {
	mu sync.Mutex

	Conn     *reactor.Connection
	Engine   *phase.Engine
	Selector *location.ServerSelector
	Log      liblog.FuncLog

	Limits Limits

	State State

	buf          []byte
	used         int
	lineConsumed int

	headerParser httpparse.HeaderParser
	headerCursor int

	RequestLine *httpparse.RequestLine
	Headers     []httpparse.HeaderField

	Host             string
	HasContentLength bool
	ContentLength    int64
	bodyRemaining    int64
	Chunked          bool
	chunkedParser    *httpparse.ChunkedParser

	HTTP11        bool
	KeepAlive     bool
	Expect100     bool
	continuedSent bool

	Server             *location.Server
	Location           *location.Location
	AutoRedirectStatus int
	AutoRedirectPath   string

	PCtx *phase.Context

	Status int

	count          int32
	bufferedOutput int32

	Started    time.Time
	RemoteAddr string
	RemoteUser string

	Parent        *Request
	Postponed     []*PostponedNode
	activeWriter  bool
	shared        *subShared
	completion    func(*Request)
	subDispatched bool

	ResponseHeaders       []ResponseHeader
	ResponseContentLength int64

	HasRange   bool
	RangeStart int64
	RangeEnd   int64 // -1 means "to end of representation"

	// Output is the connection driver's hook into the body filter chain;
	// see Emit.
	Output Emitter
}

// ResponseHeader is one outbound (name, value) pair the content handler
// or a filter adds to the response, serialised by the header filter.
type ResponseHeader struct {
	Name  string
	Value string
}

// NewRequest allocates a fresh request bound to conn, ready to read a
// request line. count starts at 1 (the implicit reference the
// connection's read handler holds); subrequests Inc() it further.
func NewRequest(conn *reactor.Connection, engine *phase.Engine, sel *location.ServerSelector, log liblog.FuncLog, limits Limits) *Request {
	r := &Request{
		Conn:                  conn,
		Engine:                engine,
		Selector:              sel,
		Log:                   log,
		Limits:                limits,
		State:                 StateWaitRequest,
		buf:                   make([]byte, 0, 2048),
		count:                 1,
		Started:               time.Now(),
		activeWriter:          true,
		ResponseContentLength: -1,
	}
	if conn != nil {
		r.RemoteAddr = conn.Peer
	}
	r.PCtx = phase.NewContext(limits.URIChangeBudget)
	r.PCtx.FindConfigFunc = r.findConfig
	r.PCtx.Data = r
	return r
}
