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

// Scope is one level of spec.md §4.5's three-level configuration tree.
type Scope uint8

const (
	ScopeMain Scope = iota
	ScopeServer
	ScopeLocation
)

// ModuleIndex is a module's stable slot in every scope's config array,
// assigned once at Registry.Register time and reused for the lifetime of
// the process — the Go rendering of an nginx module's ctx_index.
type ModuleIndex int

// Loader is a configuration module's set of per-scope config callbacks,
// the Go rendering of an nginx http module's create_*_conf/merge_*_conf
// pair. A module that has nothing to say about a given scope returns nil
// from the matching Create* method and a no-op from the matching Merge
// method.
type Loader interface {
	// Name identifies the module for duplicate-registration checks and
	// diagnostics; it is not used for lookup (ModuleIndex is).
	Name() string

	// CreateMainConf allocates this module's main-scope configuration
	// record, populated with defaults. Returns nil if the module has no
	// main-scope state.
	CreateMainConf() interface{}

	// CreateSrvConf allocates this module's per-server configuration
	// record, populated with defaults.
	CreateSrvConf() interface{}

	// CreateLocConf allocates this module's per-location configuration
	// record, populated with defaults.
	CreateLocConf() interface{}

	// MergeSrvConf folds inherited main-scope settings into a server's
	// record (e.g. "unset at this level, inherit from main").
	MergeSrvConf(main, srv interface{}) error

	// MergeLocConf folds inherited server-scope settings into a
	// location's record.
	MergeLocConf(srv, loc interface{}) error
}

// Registry assigns and remembers the stable ModuleIndex for each
// registered Loader, mirroring nginx's module-index table.
type Registry struct {
	byIndex []Loader
	byName  map[string]ModuleIndex
}

// NewRegistry returns an empty module registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]ModuleIndex)}
}

// Register assigns the next available ModuleIndex to l and returns it.
// Registering two modules under the same Name is rejected.
func (r *Registry) Register(l Loader) (ModuleIndex, error) {
	if _, exists := r.byName[l.Name()]; exists {
		return 0, ErrorDuplicateModule.Error(nil)
	}
	idx := ModuleIndex(len(r.byIndex))
	r.byIndex = append(r.byIndex, l)
	r.byName[l.Name()] = idx
	return idx, nil
}

// Len reports how many modules are registered, the size every scope's
// config array is allocated to.
func (r *Registry) Len() int {
	return len(r.byIndex)
}

// ModuleAt returns the Loader registered at idx.
func (r *Registry) ModuleAt(idx ModuleIndex) (Loader, error) {
	if int(idx) < 0 || int(idx) >= len(r.byIndex) {
		return nil, ErrorUnknownModule.Error(nil)
	}
	return r.byIndex[idx], nil
}

// Lookup returns the ModuleIndex a module registered itself under.
func (r *Registry) Lookup(name string) (ModuleIndex, bool) {
	idx, ok := r.byName[name]
	return idx, ok
}
