//go:build linux

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

package reactor

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	tlscfg "github.com/sabouaram/golib/certificates"
	liberr "github.com/sabouaram/golib/errors"
)

// ListenOptions mirrors the per-endpoint listen directive options of
// spec.md §6: backlog depth, buffer sizing, deferred accept, TCP Fast Open,
// SO_REUSEPORT, IPv6-only binding, an optional TLS wrapper, and an optional
// PROXY-protocol prefix expectation.
type ListenOptions struct {
	Network string // "tcp", "tcp4", "tcp6"
	Address string // host:port

	Backlog        int
	RecvBufferSize int
	SendBufferSize int
	DeferredAccept bool // TCP_DEFER_ACCEPT (Linux)
	FastOpen       int  // TCP_FASTOPEN queue length; 0 disables
	ReusePort      bool // SO_REUSEPORT
	IPv6Only       bool // IPV6_V6ONLY on an AF_INET6 socket

	TLS           tlscfg.TLSConfig // nil disables TLS on this endpoint
	TLSServerName string

	ProxyProtocol bool // expect a PROXY protocol v1/v2 prefix before the first request
}

// Listener owns one bound, listening socket plus the options that shaped it.
type Listener struct {
	opts ListenOptions
	ln   net.Listener
	fd   int
}

// Listen binds opts and returns a Listener. The accept-mutex soft-balancing
// scheme in Reactor operates above this: Listen itself never blocks past
// the bind/listen syscalls.
func Listen(opts ListenOptions) (*Listener, liberr.Error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctlErr error
			err := c.Control(func(fd uintptr) {
				if opts.ReusePort {
					ctlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
					if ctlErr != nil {
						return
					}
				}
				if opts.RecvBufferSize > 0 {
					ctlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBufferSize)
					if ctlErr != nil {
						return
					}
				}
				if opts.SendBufferSize > 0 {
					ctlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBufferSize)
					if ctlErr != nil {
						return
					}
				}
				if opts.DeferredAccept {
					ctlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 1)
					if ctlErr != nil {
						return
					}
				}
				if opts.FastOpen > 0 {
					ctlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_FASTOPEN, opts.FastOpen)
					if ctlErr != nil {
						return
					}
				}
				if opts.IPv6Only {
					ctlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
				}
			})
			if err != nil {
				return err
			}
			return ctlErr
		},
	}

	network := opts.Network
	if network == "" {
		network = "tcp"
	}

	ln, err := lc.Listen(context.Background(), network, opts.Address)
	if err != nil {
		return nil, ErrorListenerBind.Error(err)
	}

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return nil, ErrorListenerBind.Error(fmt.Errorf("listener for %s is not a TCP listener", opts.Address))
	}

	fd, ferr := rawFD(tcpLn)
	if ferr != nil {
		_ = ln.Close()
		return nil, ErrorListenerBind.Error(ferr)
	}

	return &Listener{opts: opts, ln: ln, fd: fd}, nil
}

// rawFD extracts the underlying file descriptor from a *net.TCPListener
// without taking ownership of it (the returned fd is shared with ln; do not
// close it directly).
func rawFD(ln *net.TCPListener) (int, error) {
	sc, err := ln.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	cerr := sc.Control(func(f uintptr) {
		fd = int(f)
	})
	if cerr != nil {
		return -1, cerr
	}
	return fd, nil
}

// FD returns the listening descriptor, used as the reactor registration key.
func (l *Listener) FD() int { return l.fd }

// Addr returns the bound local address, the actual ephemeral port chosen
// by the kernel when Address requested port 0.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close closes the underlying listening socket.
func (l *Listener) Close() error { return l.ln.Close() }

// Accept performs one non-blocking accept, wrapping the connection in TLS
// if the endpoint is configured for it. It returns (nil, nil) when no
// connection is currently pending (EAGAIN), which callers treat as "stop
// the accept-drain loop for this iteration".
func (l *Listener) Accept() (net.Conn, error) {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	if d, ok := l.ln.(deadliner); ok {
		_ = d.SetDeadline(time.Now().Add(time.Millisecond))
	}

	raw, err := l.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}

	if l.opts.TLS != nil {
		cfg := l.opts.TLS.TLS(l.opts.TLSServerName)
		return tls.Server(raw, cfg), nil
	}
	return raw, nil
}
