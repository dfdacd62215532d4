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

import (
	"regexp"

	liberr "github.com/sabouaram/golib/errors"
)

// ternaryNode is one node of the ternary search tree spec.md §4.5 calls the
// "ternary static tree": the prefix/exact location matcher, keyed
// character by character over the location pattern strings.
type ternaryNode struct {
	char            byte
	low, eq, high   *ternaryNode
	loc             *Location // set when a pattern ends exactly at this node
	autoRedirectLoc *Location // set when pattern-without-trailing-slash ends here
}

// Matcher is one server scope's location matcher: the ternary tree over
// prefix/exact locations, an ordered regex list, and the set of named
// locations reachable only via internal redirect.
type Matcher struct {
	root    *ternaryNode
	exact   map[string]*Location
	regexes []*Location
	named   map[string]*Location
}

// NewMatcher creates an empty location matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		exact: make(map[string]*Location),
		named: make(map[string]*Location),
	}
}

// Add registers loc. Exact ("=") locations are indexed for O(1) lookup;
// named ("@name") locations are indexed separately and never participate
// in ordinary path matching; everything else is inserted into the ternary
// tree (regex locations additionally append to the ordered regex list so
// their declaration order is preserved, per spec.md §4.5).
func (m *Matcher) Add(loc *Location) liberr.Error {
	switch loc.Kind {
	case KindExact:
		if _, dup := m.exact[loc.Pattern]; dup {
			return ErrorDuplicateLocation.Error(nil)
		}
		m.exact[loc.Pattern] = loc
		return nil

	case KindNamed:
		if _, dup := m.named[loc.Pattern]; dup {
			return ErrorDuplicateLocation.Error(nil)
		}
		m.named[loc.Pattern] = loc
		return nil

	case KindRegex:
		if loc.Regex == nil {
			re, err := regexp.Compile(loc.Pattern)
			if err != nil {
				return ErrorInvalidRegex.Error(err)
			}
			loc.Regex = re
		}
		m.regexes = append(m.regexes, loc)
		return nil

	default: // KindPrefix
		if err := m.insert(loc.Pattern, loc); err != nil {
			return err
		}
		if len(loc.Pattern) > 1 && loc.Pattern[len(loc.Pattern)-1] == '/' {
			m.insertAutoRedirect(loc.Pattern[:len(loc.Pattern)-1], loc)
		}
		return nil
	}
}

func (m *Matcher) insert(s string, loc *Location) liberr.Error {
	n, existed := m.insertNode(&m.root, s, 0)
	if existed && n.loc != nil {
		return ErrorDuplicateLocation.Error(nil)
	}
	n.loc = loc
	return nil
}

func (m *Matcher) insertAutoRedirect(s string, loc *Location) {
	n, _ := m.insertNode(&m.root, s, 0)
	if n.loc == nil {
		n.autoRedirectLoc = loc
	}
}

// insertNode inserts the byte at s[i] (recursing to i+1) and returns the
// terminal node for the full string s, plus whether that terminal node
// already existed prior to this call.
func (m *Matcher) insertNode(np **ternaryNode, s string, i int) (*ternaryNode, bool) {
	c := s[i]
	n := *np
	if n == nil {
		n = &ternaryNode{char: c}
		*np = n
	}

	switch {
	case c < n.char:
		return m.insertNode(&n.low, s, i)
	case c > n.char:
		return m.insertNode(&n.high, s, i)
	default:
		if i+1 == len(s) {
			return n, n.loc != nil || n.autoRedirectLoc != nil
		}
		return m.insertNode(&n.eq, s, i+1)
	}
}

// Match resolves path against this scope's locations, applying the
// priority order of spec.md §4.5: exact match, then an exclusive ("^~")
// prefix match, then the regex list in declaration order, then the
// longest plain prefix match, then an auto-redirect candidate.
func (m *Matcher) Match(path, query string) MatchResult {
	if loc, ok := m.exact[path]; ok {
		return MatchResult{Location: loc}
	}

	prefixLoc, redirectLoc := m.walk(path)

	if prefixLoc != nil && prefixLoc.Exclusive {
		return MatchResult{Location: prefixLoc}
	}

	for _, re := range m.regexes {
		if re.Regex.MatchString(path) {
			return MatchResult{Location: re}
		}
	}

	if prefixLoc != nil {
		return MatchResult{Location: prefixLoc}
	}

	if redirectLoc != nil {
		rp := redirectLoc.Pattern
		if query != "" {
			rp += "?" + query
		}
		return MatchResult{Location: redirectLoc, AutoRedirect: true, RedirectPath: rp}
	}

	return MatchResult{}
}

// Named looks up an "@name" location for an internal redirect.
func (m *Matcher) Named(name string) (*Location, bool) {
	l, ok := m.named[name]
	return l, ok
}

// walk descends the ternary tree along path, tracking the longest prefix
// location passed (prefixLoc/prefixLen) and a full-length auto-redirect
// candidate (redirectLoc, only valid if the walk consumes the entire
// path at a node carrying one).
func (m *Matcher) walk(path string) (prefixLoc *Location, redirectLoc *Location) {
	node := m.root
	i := 0
	for node != nil && i < len(path) {
		c := path[i]
		switch {
		case c < node.char:
			node = node.low
		case c > node.char:
			node = node.high
		default:
			i++
			if node.loc != nil {
				prefixLoc = node.loc
			}
			if i == len(path) && node.autoRedirectLoc != nil {
				redirectLoc = node.autoRedirectLoc
			}
			if i < len(path) {
				node = node.eq
			} else {
				node = nil
			}
		}
	}
	return
}
