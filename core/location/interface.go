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

package location

import "regexp"

// Kind is the location modifier named in spec.md §4.5.
type Kind uint8

const (
	// KindPrefix is a plain prefix location ("/images/").
	KindPrefix Kind = iota
	// KindExact is an "=" exact-match location; it short-circuits the
	// matcher the moment the full request path equals its pattern.
	KindExact
	// KindRegex is a "~" / "~*" regular-expression location.
	KindRegex
	// KindNamed is an "@name" location reachable only via an internal
	// redirect, never through ordinary URI matching.
	KindNamed
)

// Location is one configured location block. Scope is an opaque handle to
// the per-location configuration array (spec.md §4.5's loc_conf), left
// untyped here so this package stays independent of any specific module's
// configuration shape.
type Location struct {
	Pattern   string
	Kind      Kind
	Exclusive bool // the "^~" modifier: a prefix match here skips the regex list
	Regex     *regexp.Regexp
	Scope     interface{}
}

// MatchResult is the outcome of a location lookup.
type MatchResult struct {
	Location     *Location
	AutoRedirect bool   // emit 301 with RedirectPath instead of dispatching
	RedirectPath string // only set when AutoRedirect is true
}

// Server is one server{} scope: its location matcher plus an opaque handle
// to the per-server configuration array (srv_conf).
type Server struct {
	Names   []string
	Scope   interface{}
	Locator *Matcher
}
