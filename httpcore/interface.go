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
	"net"

	libatm "github.com/sabouaram/golib/atomic"
	liberr "github.com/sabouaram/golib/errors"
)

// Info provides read-only access to server identification, the same
// surface httpserver.Info exposes.
type Info interface {
	// GetName returns the unique identifier name of the server instance.
	GetName() string

	// GetBindable returns the first configured listen address.
	GetBindable() string

	// IsDisable returns true if the server is configured as disabled.
	IsDisable() bool

	// IsTLS returns true if at least one endpoint terminates TLS.
	IsTLS() bool
}

// Server is the complete interface of one httpcore server instance: the
// reactor-backed lifecycle plus configuration access and merge, the
// rendering of httpserver.Server for this module's reactor core instead
// of net/http.
type Server interface {
	Runner
	Info

	// GetConfig returns the current configuration. The returned value
	// must not be mutated in place; use SetConfig.
	GetConfig() Config

	// SetConfig replaces the configuration. The server must be stopped
	// first; calling it while running returns ErrorAlreadyRunning.
	SetConfig(cfg Config) liberr.Error

	// Merge adopts another server's configuration into this one,
	// mirroring httpserver.Server.Merge's role in a configuration
	// reload that keeps the running listener set in place where
	// possible.
	Merge(s Server) bool

	// MonitorName returns the identifier this server would register
	// under with a monitor pool. Monitor itself is not implemented:
	// monitor/types ships no non-test source in this tree (see
	// DESIGN.md), so there is no Monitor type this package could
	// satisfy without fabricating one.
	MonitorName() string

	// Addresses returns the bound local address of every listening
	// socket across every worker, the actual ephemeral port chosen by
	// the kernel when an Endpoint requested port 0. Empty while the
	// server is not running.
	Addresses() []net.Addr
}

// New builds a Server from cfg without starting it. The configuration
// is validated; ErrorNoEndpoint or ErrorParamsEmpty is returned when it
// is incomplete.
func New(cfg Config) (Server, error) {
	if err := cfg.Validate(); err != nil && !cfg.Disabled {
		return nil, err
	}

	s := &server{
		cfg: libatm.NewValue[Config](),
	}
	s.cfg.Store(cfg)
	s.lc = newLifecycle(s.doStart, s.doStop)
	return s, nil
}
