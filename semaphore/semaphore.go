/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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

// Package semaphore bounds the number of goroutines a caller runs
// concurrently, optionally reporting their progress through an mpb
// container, for workloads such as the aggregator's async writer pool.
package semaphore

import (
	"context"
	"runtime"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	xsem "golang.org/x/sync/semaphore"
)

var (
	simMu  sync.Mutex
	simVal = int64(runtime.GOMAXPROCS(0))
)

// MaxSimultaneous returns the process-wide default weight used when a
// caller does not pick one explicitly.
func MaxSimultaneous() int64 {
	simMu.Lock()
	defer simMu.Unlock()
	return simVal
}

// SetSimultaneous overrides the process-wide default weight. Values <= 0
// are rejected in favor of the current default.
func SetSimultaneous(n int64) int64 {
	simMu.Lock()
	defer simMu.Unlock()
	if n <= 0 {
		return simVal
	}
	simVal = n
	return simVal
}

// Bar is a single progress indicator, backed by mpb when the owning
// Semaphore was created with progress enabled, or a no-op counter
// otherwise.
type Bar interface {
	Total() int64
	Inc(n int)
	Inc64(n int64)
	Complete()
	Completed() bool
	NewWorker() error
	DeferWorker()
}

// Semaphore bounds concurrent workers to a fixed weight and, optionally,
// renders their progress. It embeds context.Context so callers can treat it
// as the context workers should run under.
type Semaphore interface {
	context.Context

	Weighted() int64
	NewWorker() error
	NewWorkerTry() bool
	DeferWorker()
	WaitAll() error
	DeferMain()

	BarBytes(title, msg string, total int64, drop bool, prev Bar) Bar
	BarTime(title, msg string, total int64, drop bool, prev Bar) Bar
	BarNumber(title, msg string, total int64, drop bool, prev Bar) Bar
	BarOpts(total int64, drop bool) Bar

	Clone() Semaphore
	New() Semaphore

	// GetMPB exposes the underlying *mpb.Progress (as interface{} to avoid
	// forcing every caller to import mpb), or nil when this Semaphore was
	// created without progress reporting.
	GetMPB() interface{}
}

type sem struct {
	context.Context
	cancel context.CancelFunc

	weight int64
	wgt    *xsem.Weighted

	pgb *mpb.Progress
}

// New builds a Semaphore bounding concurrency to weight workers (weight <= 0
// means unlimited) against ctx, optionally rendering progress bars on
// stdout via mpb.
func New(ctx context.Context, weight int64, withProgress bool) Semaphore {
	cctx, cancel := context.WithCancel(ctx)

	s := &sem{
		Context: cctx,
		cancel:  cancel,
		weight:  weight,
	}

	if weight > 0 {
		s.wgt = xsem.NewWeighted(weight)
	}

	if withProgress {
		s.pgb = mpb.NewWithContext(cctx)
	}

	return s
}

func (o *sem) Weighted() int64 {
	return o.weight
}

func (o *sem) GetMPB() interface{} {
	if o.pgb == nil {
		return nil
	}
	return o.pgb
}

func (o *sem) NewWorker() error {
	if o.wgt == nil {
		return nil
	}
	return o.wgt.Acquire(o.Context, 1)
}

func (o *sem) NewWorkerTry() bool {
	if o.wgt == nil {
		return true
	}
	return o.wgt.TryAcquire(1)
}

func (o *sem) DeferWorker() {
	if o.wgt == nil {
		return
	}
	o.wgt.Release(1)
}

// WaitAll blocks until every currently-held worker slot has been released,
// by momentarily acquiring the full weight.
func (o *sem) WaitAll() error {
	if o.wgt == nil {
		return nil
	}
	if err := o.wgt.Acquire(o.Context, o.weight); err != nil {
		return err
	}
	o.wgt.Release(o.weight)
	return nil
}

// DeferMain cancels this semaphore's context and, if it owns a progress
// container, waits for it to flush in the background so Done() still
// closes promptly for callers that do not care about the bars.
func (o *sem) DeferMain() {
	if o.pgb != nil {
		go o.pgb.Wait()
	}
	o.cancel()
}

func (o *sem) Clone() Semaphore {
	n := &sem{weight: o.weight}
	n.Context, n.cancel = context.WithCancel(o.Context)
	if o.wgt != nil {
		n.wgt = xsem.NewWeighted(o.weight)
	}
	n.pgb = o.pgb
	return n
}

func (o *sem) New() Semaphore {
	return New(o.Context, o.weight, o.pgb != nil)
}

func (o *sem) newBar(total int64, drop bool, options ...mpb.BarOption) Bar {
	if o.pgb == nil {
		return &noopBar{total: 0}
	}
	b := o.pgb.AddBar(total, options...)
	return &mpbBar{bar: b, sem: o, total: total}
}

func (o *sem) BarBytes(title, msg string, total int64, drop bool, prev Bar) Bar {
	return o.newBar(total, drop,
		mpb.PrependDecorators(decor.Name(title), decor.Counters(decor.SizeB1024(0), "% .2f / % .2f")),
		mpb.AppendDecorators(decor.Name(msg), decor.Percentage()),
	)
}

func (o *sem) BarTime(title, msg string, total int64, drop bool, prev Bar) Bar {
	return o.newBar(total, drop,
		mpb.PrependDecorators(decor.Name(title), decor.Elapsed(decor.ET_STYLE_GO)),
		mpb.AppendDecorators(decor.Name(msg), decor.Percentage()),
	)
}

func (o *sem) BarNumber(title, msg string, total int64, drop bool, prev Bar) Bar {
	return o.newBar(total, drop,
		mpb.PrependDecorators(decor.Name(title), decor.CountersNoUnit("%d / %d")),
		mpb.AppendDecorators(decor.Name(msg), decor.Percentage()),
	)
}

func (o *sem) BarOpts(total int64, drop bool) Bar {
	return o.newBar(total, drop)
}

// mpbBar adapts *mpb.Bar to Bar, additionally bounding how many bars run
// concurrently through the owning Semaphore's worker slots.
type mpbBar struct {
	bar   *mpb.Bar
	sem   *sem
	total int64

	mu        sync.Mutex
	completed bool
}

func (b *mpbBar) Total() int64 { return b.total }

func (b *mpbBar) Inc(n int)     { b.bar.IncrBy(n) }
func (b *mpbBar) Inc64(n int64) { b.bar.IncrInt64(n) }
func (b *mpbBar) Complete() {
	b.mu.Lock()
	b.completed = true
	b.mu.Unlock()
	b.bar.SetTotal(-1, true)
}
func (b *mpbBar) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed || b.bar.Completed()
}

func (b *mpbBar) NewWorker() error {
	return b.sem.NewWorker()
}

func (b *mpbBar) DeferWorker() {
	b.Inc(1)
	b.sem.DeferWorker()
}

// noopBar is used when a Semaphore was created without progress reporting:
// callers still get a usable Bar, it just does not render anything.
type noopBar struct {
	mu        sync.Mutex
	total     int64
	current   int64
	completed bool
}

func (b *noopBar) Total() int64 { return b.total }
func (b *noopBar) Inc(n int) {
	b.mu.Lock()
	b.current += int64(n)
	b.mu.Unlock()
}
func (b *noopBar) Inc64(n int64) {
	b.mu.Lock()
	b.current += n
	b.mu.Unlock()
}
func (b *noopBar) Complete() {
	b.mu.Lock()
	b.completed = true
	b.mu.Unlock()
}
func (b *noopBar) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}
func (b *noopBar) NewWorker() error { return nil }
func (b *noopBar) DeferWorker()     {}
