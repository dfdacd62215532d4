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

package phase

// Phase identifies one of the ten fixed slots of spec.md §4.6. LOG is
// deliberately absent: it is not part of the engine, it runs once at
// request finalization.
type Phase uint8

const (
	PostRead Phase = iota
	ServerRewrite
	FindConfig
	Rewrite
	PostRewrite
	PreAccess
	Access
	PostAccess
	TryFiles
	Content

	numPhases = int(Content) + 1
)

func (p Phase) String() string {
	switch p {
	case PostRead:
		return "POST_READ"
	case ServerRewrite:
		return "SERVER_REWRITE"
	case FindConfig:
		return "FIND_CONFIG"
	case Rewrite:
		return "REWRITE"
	case PostRewrite:
		return "POST_REWRITE"
	case PreAccess:
		return "PREACCESS"
	case Access:
		return "ACCESS"
	case PostAccess:
		return "POST_ACCESS"
	case TryFiles:
		return "TRY_FILES"
	case Content:
		return "CONTENT"
	default:
		return "UNKNOWN"
	}
}

// Result is a handler's verdict, driving the engine per spec.md §4.6.
type Result uint8

const (
	OK Result = iota
	Declined
	Again
	Done
	Error
)

// Handler is one module's contribution to a phase.
type Handler func(ctx *Context) Result

// Satisfy selects the ACCESS phase's pass criterion across its registered
// handlers: All requires every handler to grant access, Any is satisfied
// the moment one does.
type Satisfy uint8

const (
	SatisfyAll Satisfy = iota
	SatisfyAny
)

// Context is the engine's per-request state: the phase cursor plus the
// small set of fields the fixed checkers (FIND_CONFIG, POST_REWRITE,
// POST_ACCESS, TRY_FILES, CONTENT) read and write.
type Context struct {
	cursor int

	Satisfy Satisfy

	URIChanged      bool
	URIChangeBudget int

	AccessDenied bool
	AccessCode   int // set by an ACCESS handler that denies; defaults to 403

	Status int // set when the engine finalizes on error

	// ContentHandler, if set, is the location's own content handler and
	// is dispatched directly by the CONTENT checker instead of iterating
	// the registered generic content handlers.
	ContentHandler Handler

	// FindConfigFunc resolves the request's location scope (normally by
	// delegating to a core/location Matcher); it is invoked by the
	// FIND_CONFIG fixed checker, which has no module handler list of its
	// own.
	FindConfigFunc func(ctx *Context) Result
	// TryFilesFunc probes the filesystem for the TRY_FILES fixed phase.
	TryFilesFunc func(ctx *Context) Result

	pendingURI  *string
	pendingName *string

	// Data is the opaque request handle every handler closure captures
	// to reach the actual HTTP request state; the engine itself never
	// looks inside it.
	Data interface{}
}

// InternalRedirect requests that the engine resume at FIND_CONFIG with a
// new URI, per spec.md §4.6's "Internal redirect". It takes effect at the
// start of the engine's next loop iteration.
func (c *Context) InternalRedirect(uri string) {
	c.pendingURI = &uri
}

// NamedRedirect requests a named-location jump: the engine resumes just
// past FIND_CONFIG (the location pointer is assumed already bound by the
// caller before resuming) without re-matching the URI.
func (c *Context) NamedRedirect(name string) {
	c.pendingName = &name
}
