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
	"fmt"
	"net"
	"syscall"

	liberr "github.com/sabouaram/golib/errors"
)

// BindAccepted acquires a Connection from pool and binds it to raw, a
// net.Conn just returned by a Listener's Accept. It extracts the
// descriptor beneath any TLS wrapping so the reactor can register it with
// the notifier, while c.Raw keeps the original net.Conn (TLS included)
// for actual reads and writes.
func BindAccepted(pool *ConnPool, raw net.Conn) (*Connection, liberr.Error) {
	fd, err := connFD(raw)
	if err != nil {
		return nil, ErrorAcceptFailed.Error(err)
	}

	c, aerr := pool.Acquire()
	if aerr != nil {
		return nil, aerr
	}

	c.mu.Lock()
	c.fd = fd
	c.Raw = raw
	c.Peer = raw.RemoteAddr().String()
	c.Local = raw.LocalAddr().String()
	c.mu.Unlock()

	return c, nil
}

// connFD extracts the syscall file descriptor underneath raw, unwrapping
// one layer of *tls.Conn if present (it implements NetConn() net.Conn
// since Go 1.18).
func connFD(raw net.Conn) (int, error) {
	conn := raw
	if unwrap, ok := raw.(interface{ NetConn() net.Conn }); ok {
		conn = unwrap.NetConn()
	}

	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1, fmt.Errorf("connection of type %T does not expose a raw file descriptor", raw)
	}

	rc, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}

	var fd int
	cerr := rc.Control(func(f uintptr) {
		fd = int(f)
	})
	if cerr != nil {
		return -1, cerr
	}
	return fd, nil
}
