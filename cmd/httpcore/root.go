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

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sabouaram/golib/core/location"
	"github.com/sabouaram/golib/core/phase"
	"github.com/sabouaram/golib/core/request"
	"github.com/sabouaram/golib/httpcore"
	liblog "github.com/sabouaram/golib/logger"
	spfcbr "github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...". It is a
// package-level var rather than httpcore's own constant because the
// version a binary reports is a property of the build, not of the library.
var version = "dev"

func newRootCommand() *spfcbr.Command {
	root := &spfcbr.Command{
		Use:   "httpcore",
		Short: "Run a standalone httpcore HTTP/1.x reactor server",
	}

	root.AddCommand(newVersionCommand())
	root.AddCommand(newServeCommand())
	return root
}

func newVersionCommand() *spfcbr.Command {
	return &spfcbr.Command{
		Use:   "version",
		Short: "Print the httpcore binary version",
		RunE: func(cmd *spfcbr.Command, args []string) error {
			cmd.Println(version)
			return nil
		},
	}
}

func newServeCommand() *spfcbr.Command {
	var (
		address     string
		workers     int
		maxConn     int
		readTimeout time.Duration
		acceptMutex bool
	)

	cmd := &spfcbr.Command{
		Use:   "serve",
		Short: "Bind and run the reactor server until interrupted",
		RunE: func(cmd *spfcbr.Command, args []string) error {
			return runServe(address, workers, maxConn, readTimeout, acceptMutex)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&address, "address", "0.0.0.0:8080", "listen address (host:port)")
	flags.IntVar(&workers, "workers", 0, "reactor worker count (0 = GOMAXPROCS)")
	flags.IntVar(&maxConn, "max-conn", 1024, "connection pool size per worker")
	flags.DurationVar(&readTimeout, "read-timeout", 60*time.Second, "idle read timeout per connection")
	flags.BoolVar(&acceptMutex, "accept-mutex", false, "enable the accept-mutex balancing scheme")

	return cmd
}

func runServe(address string, workers, maxConn int, readTimeout time.Duration, acceptMutex bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := liblog.New(ctx)

	cfg := httpcore.Config{
		Name:               "httpcore",
		Endpoints:          []httpcore.Endpoint{{Network: "tcp", Address: address}},
		Workers:            workers,
		MaxConnPerWorker:   maxConn,
		AcceptMutexEnabled: acceptMutex,
		ReadTimeout:        readTimeout,
		Limits: request.Limits{
			MaxRequestLineSize: 8 * 1024,
			MaxHeaderSize:      32 * 1024,
			URIChangeBudget:    8,
		},
		Engine:   defaultEngine(),
		Selector: defaultSelector(),
		Log:      func() liblog.Logger { return log },
	}

	srv, err := httpcore.New(cfg)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	for _, a := range srv.Addresses() {
		log.Info("listening on %s", nil, a.String())
	}

	<-ctx.Done()
	log.Info("shutting down", nil)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(stopCtx)
}

// defaultEngine builds an engine with no registered module handlers: every
// request goes straight from FIND_CONFIG to whatever CONTENT handler the
// matched location's Scope names, or a 404 if none matches. Wiring real
// POST_READ/REWRITE/ACCESS module handlers is the embedder's job; this
// binary only demonstrates the reactor core itself.
func defaultEngine() *phase.Engine {
	eng := phase.NewEngine()
	eng.Build()
	return eng
}

// defaultSelector serves a single catch-all server with one "/" location
// whose content handler replies with a fixed placeholder body, so `serve`
// answers every request instead of silently 404ing on a bare install.
func defaultSelector() *location.ServerSelector {
	var welcome phase.Handler = func(ctx *phase.Context) phase.Result {
		r, ok := ctx.Data.(*request.Request)
		if !ok {
			return phase.Error
		}

		body := []byte(fmt.Sprintf("httpcore %s\n", version))
		r.Status = 200
		r.ResponseContentLength = int64(len(body))
		r.AddResponseHeader("Content-Type", "text/plain; charset=utf-8")

		if _, err := r.Emit(request.Chain{{Buf: body, Last: true}}); err != nil {
			return phase.Error
		}
		return phase.OK
	}

	m := location.NewMatcher()
	_ = m.Add(&location.Location{Pattern: "/", Kind: location.KindPrefix, Scope: welcome})

	sel := location.NewServerSelector()
	sel.SetDefault(&location.Server{Names: []string{"_"}, Locator: m})
	return sel
}
