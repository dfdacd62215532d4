/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package startStop wraps a pair of start/stop functions into a restartable
// background task with uptime and error tracking, the lifecycle primitive
// used by hooks and other long-running goroutines that need Start/Stop/Restart
// semantics instead of raw goroutine management.
package startStop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// FuncStart is run in its own goroutine by Start; it normally blocks until
// ctx is done.
type FuncStart func(ctx context.Context) error

// FuncStop is run synchronously by Stop to unwind whatever FuncStart set up.
type FuncStop func(ctx context.Context) error

// StartStop is a restartable background task with uptime and error history.
type StartStop interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsRunning() bool
	Uptime() time.Duration
	ErrorsLast() error
	ErrorsList() []error
}

type runner struct {
	fctStart FuncStart
	fctStop  FuncStop

	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	startAt atomic.Value // time.Time

	errMu sync.Mutex
	errs  []error
}

// New wraps start/stop into a StartStop. Either function may be nil; calling
// Start or Stop in that case records an error instead of panicking.
func New(start FuncStart, stop FuncStop) StartStop {
	return &runner{fctStart: start, fctStop: stop}
}

func (o *runner) addErr(err error) {
	if err == nil {
		return
	}
	o.errMu.Lock()
	o.errs = append(o.errs, err)
	o.errMu.Unlock()
}

func (o *runner) ErrorsLast() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	if len(o.errs) == 0 {
		return nil
	}
	return o.errs[len(o.errs)-1]
}

func (o *runner) ErrorsList() []error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	out := make([]error, len(o.errs))
	copy(out, o.errs)
	return out
}

func (o *runner) IsRunning() bool {
	return o.running.Load()
}

func (o *runner) Uptime() time.Duration {
	if !o.running.Load() {
		return 0
	}
	t, ok := o.startAt.Load().(time.Time)
	if !ok || t.IsZero() {
		return 0
	}
	return time.Since(t)
}

// Start stops any previous instance, then launches fctStart in a fresh
// goroutine derived from ctx. It returns immediately; failures (including a
// nil start function or a recovered panic) surface through ErrorsLast.
func (o *runner) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.mu.Unlock()

	if o.fctStart == nil {
		o.addErr(fmt.Errorf("invalid start function"))
		return nil
	}

	o.running.Store(true)
	o.startAt.Store(time.Now())

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				o.addErr(fmt.Errorf("panic in start function: %v", rec))
			}
			o.running.Store(false)
		}()

		if err := o.fctStart(cctx); err != nil {
			o.addErr(err)
		}
	}()

	return nil
}

// Stop cancels the context handed to the running start function and runs
// fctStop synchronously with ctx. Stop never returns the stop function's
// error directly; it is recorded through ErrorsLast instead, matching how
// Start reports failures of its own function.
func (o *runner) Stop(ctx context.Context) error {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if o.fctStop == nil {
		o.addErr(fmt.Errorf("invalid stop function"))
		return nil
	}

	if err := o.fctStop(ctx); err != nil {
		o.addErr(err)
	}

	return nil
}

// Restart stops the current instance, if any, and starts a new one.
func (o *runner) Restart(ctx context.Context) error {
	_ = o.Stop(ctx)
	return o.Start(ctx)
}
