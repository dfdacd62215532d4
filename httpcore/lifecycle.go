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
	"sync"
	"time"
)

// Runner is the Start/Stop/Restart/IsRunning/Uptime/Errors lifecycle
// surface every reactor-backed server exposes. Its shape follows
// runner/startStop's test-documented API (that package ships no
// non-test source in this tree, so it cannot be imported directly; this
// is an original implementation of the same contract) rather than
// httpserver.Server's bespoke atomic.Value/run-bool pair, since that
// package's own Server additionally embeds the real, importable
// runner.Runner interface that httpcore has no access to.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsRunning() bool
	Uptime() time.Duration
	ErrorsLast() error
	ErrorsList() []error
}

// lifecycle implements Runner around a pair of start/stop functions,
// exactly the construction shape runner/startStop.New's tests exercise.
type lifecycle struct {
	mu sync.Mutex

	start func(ctx context.Context) error
	stop  func(ctx context.Context) error

	running   bool
	startedAt time.Time
	errs      []error
}

func newLifecycle(start, stop func(ctx context.Context) error) *lifecycle {
	return &lifecycle{start: start, stop: stop}
}

func (l *lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrorAlreadyRunning.Error(nil)
	}
	l.mu.Unlock()

	var err error
	if l.start != nil {
		err = l.start(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.errs = append(l.errs, err)
		return err
	}
	l.running = true
	l.startedAt = time.Now()
	return nil
}

func (l *lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return ErrorNotRunning.Error(nil)
	}
	l.mu.Unlock()

	var err error
	if l.stop != nil {
		err = l.stop(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	l.startedAt = time.Time{}
	if err != nil {
		l.errs = append(l.errs, err)
	}
	return err
}

// Restart stops the runner if running, then starts it again. Restarting
// a runner that was never started is equivalent to Start.
func (l *lifecycle) Restart(ctx context.Context) error {
	if l.IsRunning() {
		if err := l.Stop(ctx); err != nil {
			return err
		}
	}
	return l.Start(ctx)
}

func (l *lifecycle) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *lifecycle) Uptime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return 0
	}
	return time.Since(l.startedAt)
}

func (l *lifecycle) ErrorsLast() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) == 0 {
		return nil
	}
	return l.errs[len(l.errs)-1]
}

func (l *lifecycle) ErrorsList() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]error, len(l.errs))
	copy(out, l.errs)
	return out
}
