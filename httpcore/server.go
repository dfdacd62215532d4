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
	"context"
	"net"
	"sync"
	"time"

	libatm "github.com/sabouaram/golib/atomic"
	liberr "github.com/sabouaram/golib/errors"
)

// server is the concrete Server: a configuration cell plus the set of
// reactor workers currently bound to it. Workers exist only between a
// successful Start and the matching Stop.
type server struct {
	cfg libatm.Value[Config]
	lc  *lifecycle

	mu      sync.Mutex
	workers []*worker
}

func (s *server) Start(ctx context.Context) error   { return s.lc.Start(ctx) }
func (s *server) Stop(ctx context.Context) error    { return s.lc.Stop(ctx) }
func (s *server) Restart(ctx context.Context) error { return s.lc.Restart(ctx) }
func (s *server) IsRunning() bool                   { return s.lc.IsRunning() }
func (s *server) Uptime() time.Duration             { return s.lc.Uptime() }
func (s *server) ErrorsLast() error                 { return s.lc.ErrorsLast() }
func (s *server) ErrorsList() []error               { return s.lc.ErrorsList() }

func (s *server) doStart(_ context.Context) error {
	cfg := s.cfg.Load()
	if cfg.Disabled {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	n := cfg.workers()
	ws := make([]*worker, 0, n)
	for i := 0; i < n; i++ {
		w, err := newWorker(uint64(i), cfg)
		if err != nil {
			for _, started := range ws {
				started.stop()
			}
			return err
		}
		ws = append(ws, w)
	}

	s.mu.Lock()
	s.workers = ws
	s.mu.Unlock()

	for _, w := range ws {
		w.start()
	}
	return nil
}

func (s *server) doStop(_ context.Context) error {
	s.mu.Lock()
	ws := s.workers
	s.workers = nil
	s.mu.Unlock()

	for _, w := range ws {
		w.stop()
	}
	return nil
}

// GetName returns cfg.Name, falling back to the first endpoint's address
// when unset, mirroring httpserver.ServerConfig's Name/bind-address
// fallback.
func (s *server) GetName() string {
	cfg := s.cfg.Load()
	if cfg.Name != "" {
		return cfg.Name
	}
	return s.GetBindable()
}

func (s *server) GetBindable() string {
	cfg := s.cfg.Load()
	if len(cfg.Endpoints) == 0 {
		return ""
	}
	return cfg.Endpoints[0].Address
}

func (s *server) IsDisable() bool { return s.cfg.Load().Disabled }

func (s *server) IsTLS() bool {
	for _, ep := range s.cfg.Load().Endpoints {
		if ep.TLS != nil {
			return true
		}
	}
	return false
}

func (s *server) GetConfig() Config { return s.cfg.Load() }

func (s *server) SetConfig(cfg Config) liberr.Error {
	if s.IsRunning() {
		return ErrorAlreadyRunning.Error(nil)
	}
	s.cfg.Store(cfg)
	return nil
}

// Merge adopts o's configuration, refusing while running so a live
// worker set is never left describing a stale Config.
func (s *server) Merge(o Server) bool {
	other, ok := o.(*server)
	if !ok || s.IsRunning() {
		return false
	}
	s.cfg.Store(other.cfg.Load())
	return true
}

func (s *server) MonitorName() string { return s.GetName() }

func (s *server) Addresses() []net.Addr {
	s.mu.Lock()
	ws := s.workers
	s.mu.Unlock()

	var out []net.Addr
	for _, w := range ws {
		out = append(out, w.addrs()...)
	}
	return out
}
