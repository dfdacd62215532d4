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
	"sort"
	"strings"

	liberr "github.com/sabouaram/golib/errors"
)

// ServerSelector resolves a request Host to a Server scope, per spec.md
// §4.5: an exact-match hash, a leading-wildcard set ("*.example.com"), a
// trailing-wildcard set ("www.example.*"), and an ordered regex list,
// consulted in that order. The two wildcard sets are rendered here as
// specificity-sorted slices rather than tries — a deliberate
// simplification noted in the design ledger — but preserve the same
// longest-match-wins behavior a trie gives.
type ServerSelector struct {
	exact      map[string]*Server
	leading    []wildcardEntry // "*.example.com" -> suffix ".example.com"
	trailing   []wildcardEntry // "www.example.*" -> prefix "www.example."
	regexes    []serverRegex
	defaultSrv *Server
}

type wildcardEntry struct {
	match string
	srv   *Server
}

type serverRegex struct {
	re  *regexp.Regexp
	srv *Server
}

// NewServerSelector creates an empty selector.
func NewServerSelector() *ServerSelector {
	return &ServerSelector{exact: make(map[string]*Server)}
}

// SetDefault designates the server returned when no server_name matches,
// mirroring the listen directive's implicit first/default_server.
func (s *ServerSelector) SetDefault(srv *Server) { s.defaultSrv = srv }

// Add indexes srv under each of its configured names.
func (s *ServerSelector) Add(srv *Server) liberr.Error {
	for _, name := range srv.Names {
		switch {
		case strings.HasPrefix(name, "*."):
			suffix := name[1:] // keep the leading dot: ".example.com"
			s.leading = append(s.leading, wildcardEntry{match: suffix, srv: srv})

		case strings.HasSuffix(name, ".*"):
			prefix := name[:len(name)-1] // keep the trailing dot: "www.example."
			s.trailing = append(s.trailing, wildcardEntry{match: prefix, srv: srv})

		case strings.HasPrefix(name, "~"):
			re, err := regexp.Compile(name[1:])
			if err != nil {
				return ErrorInvalidRegex.Error(err)
			}
			s.regexes = append(s.regexes, serverRegex{re: re, srv: srv})

		default:
			s.exact[name] = srv
		}
	}

	sort.Slice(s.leading, func(i, j int) bool { return len(s.leading[i].match) > len(s.leading[j].match) })
	sort.Slice(s.trailing, func(i, j int) bool { return len(s.trailing[i].match) > len(s.trailing[j].match) })

	return nil
}

// Select resolves host (already lowercased, port stripped by the caller)
// to a Server, falling back to the configured default.
func (s *ServerSelector) Select(host string) (*Server, liberr.Error) {
	if srv, ok := s.exact[host]; ok {
		return srv, nil
	}
	for _, w := range s.leading {
		if strings.HasSuffix(host, w.match) {
			return w.srv, nil
		}
	}
	for _, w := range s.trailing {
		if strings.HasPrefix(host, w.match) {
			return w.srv, nil
		}
	}
	for _, r := range s.regexes {
		if r.re.MatchString(host) {
			return r.srv, nil
		}
	}
	if s.defaultSrv != nil {
		return s.defaultSrv, nil
	}
	return nil, ErrorNoServerMatch.Error(nil)
}
