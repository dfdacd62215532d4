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

package config

// ServerConf is one server scope's array of per-module configuration
// records, indexed by ModuleIndex.
type ServerConf []interface{}

// LocConf is one location scope's array of per-module configuration
// records, indexed by ModuleIndex.
type LocConf []interface{}

// Tree is the three-level configuration hierarchy of spec.md §4.5:
// a single main-scope array, one server-scope array per virtual host,
// and one location-scope array per location within a server. A request
// binds to a row of Server and a row of Location as it resolves through
// FIND_CONFIG; the phase engine and content handlers read their module's
// settings back out via the ModuleIndex they were registered under.
type Tree struct {
	reg    *Registry
	Main   []interface{}
	Server []ServerConf
	Loc    []LocConf
}

// NewTree allocates a Tree bound to reg, with the main-scope array
// created and each registered module's defaults populated.
func NewTree(reg *Registry) *Tree {
	t := &Tree{reg: reg}
	t.Main = make([]interface{}, reg.Len())
	for i, m := range reg.byIndex {
		t.Main[i] = m.CreateMainConf()
	}
	return t
}

// AddServer allocates a new server-scope row, populated with each
// module's defaults, and returns its index into Tree.Server.
func (t *Tree) AddServer() int {
	row := make(ServerConf, t.reg.Len())
	for i, m := range t.reg.byIndex {
		row[i] = m.CreateSrvConf()
	}
	t.Server = append(t.Server, row)
	return len(t.Server) - 1
}

// AddLocation allocates a new location-scope row, populated with each
// module's defaults, and returns its index into Tree.Loc.
func (t *Tree) AddLocation() int {
	row := make(LocConf, t.reg.Len())
	for i, m := range t.reg.byIndex {
		row[i] = m.CreateLocConf()
	}
	t.Loc = append(t.Loc, row)
	return len(t.Loc) - 1
}

// MergeServer runs every registered module's MergeSrvConf against the
// server row at srv, folding in main-scope defaults where the server
// left a setting unset. This mirrors nginx's merge_srv_conf pass, run
// once per server block after configuration loading completes.
func (t *Tree) MergeServer(srv int) error {
	for i, m := range t.reg.byIndex {
		if err := m.MergeSrvConf(t.Main[i], t.Server[srv][i]); err != nil {
			return ErrorMergeFailed.Error(err)
		}
	}
	return nil
}

// MergeLocation runs every registered module's MergeLocConf against the
// location row at loc, folding in the owning server's settings.
func (t *Tree) MergeLocation(srv, loc int) error {
	for i, m := range t.reg.byIndex {
		if err := m.MergeLocConf(t.Server[srv][i], t.Loc[loc][i]); err != nil {
			return ErrorMergeFailed.Error(err)
		}
	}
	return nil
}

// ModuleMain returns the main-scope config record a module registered
// under idx.
func (t *Tree) ModuleMain(idx ModuleIndex) interface{} {
	return t.Main[idx]
}

// ModuleServer returns a module's config record out of the server row
// at srv.
func (t *Tree) ModuleServer(srv int, idx ModuleIndex) interface{} {
	return t.Server[srv][idx]
}

// ModuleLoc returns a module's config record out of the location row at
// loc.
func (t *Tree) ModuleLoc(loc int, idx ModuleIndex) interface{} {
	return t.Loc[loc][idx]
}
