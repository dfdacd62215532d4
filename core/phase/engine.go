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

import (
	liberr "github.com/sabouaram/golib/errors"
)

// record is one flattened slot of the engine's phase array: either a
// module handler (generic phases and ACCESS) or a marker for one of the
// four fixed phases whose checker logic lives in the engine itself.
type record struct {
	phase   Phase
	handler Handler
}

// Engine is the built, immutable flattening of every registered phase
// handler in phase order, per spec.md §4.6.
type Engine struct {
	handlers [numPhases][]Handler

	flat            []record
	findConfigIndex int
}

// NewEngine creates an empty engine; Register handlers for the generic
// phases (POST_READ, SERVER_REWRITE, REWRITE, PREACCESS, ACCESS, CONTENT)
// and call Build before the first Run.
func NewEngine() *Engine {
	return &Engine{}
}

// fixedPhase reports whether p's checker is built into the engine rather
// than driven by a registered module handler list.
func fixedPhase(p Phase) bool {
	switch p {
	case FindConfig, PostRewrite, PostAccess, TryFiles:
		return true
	default:
		return false
	}
}

// Register appends h to phase p's handler list. Registering against one
// of the four fixed phases is rejected: FIND_CONFIG and TRY_FILES take
// their single hook via Context.FindConfigFunc/TryFilesFunc instead, and
// POST_REWRITE/POST_ACCESS have no module-visible hook at all.
func (e *Engine) Register(p Phase, h Handler) liberr.Error {
	if fixedPhase(p) {
		return ErrorFixedPhaseHandler.Error(nil)
	}
	e.handlers[p] = append(e.handlers[p], h)
	return nil
}

// Build flattens the registered handler lists into phase order. Call it
// once configuration is complete and before the first Run.
func (e *Engine) Build() {
	e.flat = e.flat[:0]
	e.findConfigIndex = -1

	for p := Phase(0); p < Phase(numPhases); p++ {
		if fixedPhase(p) {
			e.flat = append(e.flat, record{phase: p})
			if p == FindConfig {
				e.findConfigIndex = len(e.flat) - 1
			}
			continue
		}
		for _, h := range e.handlers[p] {
			e.flat = append(e.flat, record{phase: p, handler: h})
		}
	}
}

// NewContext creates a fresh per-request cursor positioned at POST_READ,
// with the uri-change budget spec.md §4.6 requires to bound
// POST_REWRITE/internal-redirect loops.
func NewContext(uriChangeBudget int) *Context {
	return &Context{URIChangeBudget: uriChangeBudget}
}

// Phase reports the phase the cursor currently sits in.
func (c *Context) Phase(e *Engine) Phase {
	if c.cursor >= len(e.flat) {
		return Content
	}
	return e.flat[c.cursor].phase
}

// Run walks ctx.cursor through the engine from wherever it currently
// sits, returning when a handler yields (AGAIN/DONE), the CONTENT phase
// finalizes the response, or an error terminates the request.
func (e *Engine) Run(ctx *Context) Result {
	for {
		if ctx.pendingURI != nil {
			ctx.pendingURI = nil
			if ctx.URIChangeBudget <= 0 {
				ctx.Status = 500
				return Error
			}
			ctx.URIChangeBudget--
			ctx.cursor = e.findConfigIndex
			continue
		}
		if ctx.pendingName != nil {
			ctx.pendingName = nil
			ctx.cursor = e.findConfigIndex + 1
			continue
		}

		if ctx.cursor >= len(e.flat) {
			return Done
		}

		rec := e.flat[ctx.cursor]

		switch rec.phase {
		case FindConfig:
			res := OK
			if ctx.FindConfigFunc != nil {
				res = ctx.FindConfigFunc(ctx)
			}
			if r, term := e.stepGeneric(ctx, res); term {
				return r
			}
			ctx.cursor++

		case PostRewrite:
			if ctx.URIChanged {
				if ctx.URIChangeBudget <= 0 {
					ctx.Status = 500
					return Error
				}
				ctx.URIChangeBudget--
				ctx.URIChanged = false
				ctx.cursor = e.findConfigIndex
				continue
			}
			ctx.cursor++

		case PostAccess:
			if ctx.AccessDenied {
				if ctx.AccessCode == 0 {
					ctx.AccessCode = 403
				}
				ctx.Status = ctx.AccessCode
				return Error
			}
			ctx.cursor++

		case TryFiles:
			res := OK
			if ctx.TryFilesFunc != nil {
				res = ctx.TryFilesFunc(ctx)
			}
			if r, term := e.stepGeneric(ctx, res); term {
				return r
			}
			ctx.cursor++

		case Content:
			return e.runContent(ctx)

		case Access:
			if r, term := e.stepAccess(ctx, rec); term {
				return r
			}
			// stepAccess always leaves ctx.cursor at the correct next
			// slot itself (either cursor+1 or past the whole ACCESS
			// run), so Run must not advance it again here.

		default:
			res := rec.handler(ctx)
			if r, term := e.stepGeneric(ctx, res); term {
				return r
			}
			ctx.cursor++
		}
	}
}

// stepGeneric applies the OK/DECLINED/AGAIN/DONE/ERROR contract shared by
// every non-ACCESS phase: OK and DECLINED both just advance the cursor
// (DECLINED means "not mine, try the next handler or the next phase"),
// AGAIN/DONE yield control to the caller, anything else finalizes with an
// error status.
func (e *Engine) stepGeneric(ctx *Context, res Result) (Result, bool) {
	switch res {
	case OK, Declined:
		return OK, false
	case Again, Done:
		return res, true
	default:
		if ctx.Status == 0 {
			ctx.Status = 500
		}
		return Error, true
	}
}

// stepAccess applies the satisfy-any/satisfy-all semantics of spec.md
// §4.6's ACCESS phase across its registered handlers.
func (e *Engine) stepAccess(ctx *Context, rec record) (Result, bool) {
	res := rec.handler(ctx)

	switch res {
	case Again, Done:
		return res, true

	case OK:
		if ctx.Satisfy == SatisfyAny {
			ctx.AccessDenied = false
			ctx.cursor = e.skipPhase(ctx.cursor, Access)
			return OK, false
		}
		if e.isLastOf(ctx.cursor, Access) {
			ctx.AccessDenied = false
		}
		ctx.cursor++
		return OK, false

	default: // Declined or Error: a denial in ACCESS
		if ctx.AccessCode == 0 {
			ctx.AccessCode = 403
		}
		if ctx.Satisfy == SatisfyAll {
			ctx.AccessDenied = true
			ctx.cursor = e.skipPhase(ctx.cursor, Access)
			return OK, false
		}
		if e.isLastOf(ctx.cursor, Access) {
			ctx.AccessDenied = true
		}
		ctx.cursor++
		return OK, false
	}
}

// skipPhase returns the index of the first record at or after idx+1
// that does not belong to phase p.
func (e *Engine) skipPhase(idx int, p Phase) int {
	i := idx + 1
	for i < len(e.flat) && e.flat[i].phase == p {
		i++
	}
	return i
}

func (e *Engine) isLastOf(idx int, p Phase) bool {
	return idx+1 >= len(e.flat) || e.flat[idx+1].phase != p
}

// runContent implements the CONTENT phase: the location's own content
// handler, if bound, is dispatched directly; otherwise the registered
// generic content handlers run in order and the first one that does not
// decline produces the response. Either way CONTENT terminates the
// engine: there is no phase after it.
func (e *Engine) runContent(ctx *Context) Result {
	if ctx.ContentHandler != nil {
		res := ctx.ContentHandler(ctx)
		if res == Declined {
			if ctx.Status == 0 {
				ctx.Status = 404
			}
			return Error
		}
		return e.finishContent(ctx, res)
	}

	for i := ctx.cursor; i < len(e.flat) && e.flat[i].phase == Content; i++ {
		res := e.flat[i].handler(ctx)
		if res == Declined {
			continue
		}
		return e.finishContent(ctx, res)
	}

	if ctx.Status == 0 {
		ctx.Status = 404
	}
	return Error
}

func (e *Engine) finishContent(ctx *Context, res Result) Result {
	switch res {
	case OK, Done:
		return Done
	case Again:
		return Again
	default:
		if ctx.Status == 0 {
			ctx.Status = 500
		}
		return Error
	}
}
