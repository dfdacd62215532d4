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

	"github.com/sabouaram/golib/core/reactor"
	liberr "github.com/sabouaram/golib/errors"
)

// worker owns one reactor event loop, its own listening socket per
// configured endpoint, and the goroutine running Reactor.Run. Every
// worker is an independent accept path: with more than one worker, each
// binds the same addresses with SO_REUSEPORT so the kernel spreads
// accepts across them instead of funnelling everything through the
// accept-mutex.
type worker struct {
	id        uint64
	reactor   *reactor.Reactor
	listeners []*reactor.Listener
	done      chan liberr.Error
}

func newWorker(id uint64, cfg Config) (*worker, liberr.Error) {
	notifier, err := reactor.NewEpollNotifier()
	if err != nil {
		return nil, err
	}

	w := &worker{
		id:      id,
		reactor: reactor.NewReactor(id, notifier, cfg.maxConn(), cfg.AcceptMutexEnabled),
		done:    make(chan liberr.Error, 1),
	}

	drv := newDriver(w.reactor, cfg)

	for _, ep := range cfg.Endpoints {
		opts := ep
		if cfg.workers() > 1 {
			opts.ReusePort = true
		}

		ln, lerr := reactor.Listen(opts)
		if lerr != nil {
			w.closeListeners()
			return nil, lerr
		}
		w.listeners = append(w.listeners, ln)

		if rerr := w.reactor.RegisterListener(ln.FD(), drv.accept(ln)); rerr != nil {
			w.closeListeners()
			return nil, rerr
		}
	}

	return w, nil
}

func (w *worker) addrs() []net.Addr {
	out := make([]net.Addr, 0, len(w.listeners))
	for _, ln := range w.listeners {
		out = append(out, ln.Addr())
	}
	return out
}

func (w *worker) closeListeners() {
	for _, ln := range w.listeners {
		_ = ln.Close()
	}
}

// start runs the reactor loop in its own goroutine; the result is sent
// to done once Run returns.
func (w *worker) start() {
	go func() {
		w.done <- w.reactor.Run()
	}()
}

// stop signals the reactor to return after its current iteration and
// closes the worker's listening sockets.
func (w *worker) stop() {
	w.reactor.Stop()
	w.closeListeners()
	<-w.done
}
