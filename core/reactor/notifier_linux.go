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
	"sync"
	"time"

	"golang.org/x/sys/unix"

	liberr "github.com/sabouaram/golib/errors"
)

// epollNotifier is the Linux Notifier implementation, backed directly by
// epoll_create1/epoll_ctl/epoll_wait via golang.org/x/sys/unix — the same
// syscall layer the teacher's socket and network packages build on.
type epollNotifier struct {
	epfd int

	mu   sync.Mutex
	regs map[int]uint32 // fd -> currently-registered epoll event mask
}

// NewEpollNotifier creates the epoll instance backing one reactor loop. One
// instance is owned by exactly one worker goroutine.
func NewEpollNotifier() (Notifier, liberr.Error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrorNotifierCreate.Error(err)
	}
	return &epollNotifier{epfd: fd, regs: make(map[int]uint32)}, nil
}

func maskFor(kind EventKind, mode RegisterMode, existing uint32) uint32 {
	m := existing
	switch kind {
	case EventRead:
		m |= unix.EPOLLIN
	case EventWrite:
		m |= unix.EPOLLOUT
	}
	if mode == ModeEdge {
		m |= unix.EPOLLET
	}
	return m
}

func (n *epollNotifier) Register(fd int, kind EventKind, mode RegisterMode) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	existing, already := n.regs[fd]
	want := maskFor(kind, mode, existing)

	op := unix.EPOLL_CTL_ADD
	if already {
		if existing == want {
			return nil
		}
		op = unix.EPOLL_CTL_MOD
	}

	ev := &unix.EpollEvent{Events: want, Fd: int32(fd)}
	if err := unix.EpollCtl(n.epfd, op, fd, ev); err != nil {
		return ErrorNotifierRegister.Error(err)
	}
	n.regs[fd] = want
	return nil
}

func (n *epollNotifier) Unregister(fd int, flags UnregisterFlag) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.regs, fd)
	if flags == UnregisterClosing {
		// the kernel drops epoll registration automatically when the
		// last descriptor referencing the file is closed.
		return nil
	}
	if err := unix.EpollCtl(n.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return ErrorNotifierUnregister.Error(err)
	}
	return nil
}

func (n *epollNotifier) Poll(timeout time.Duration) ([]ReadyEvent, error) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}

	raw := make([]unix.EpollEvent, 256)
	nReady, err := unix.EpollWait(n.epfd, raw, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, ErrorNotifierPoll.Error(err)
	}

	out := make([]ReadyEvent, 0, nReady)
	for i := 0; i < nReady; i++ {
		e := raw[i]
		out = append(out, ReadyEvent{
			FD:       int(e.Fd),
			Readable: e.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: e.Events&unix.EPOLLOUT != 0,
			HangUp:   e.Events&unix.EPOLLHUP != 0,
			ErrorBit: e.Events&unix.EPOLLERR != 0,
		})
	}
	return out, nil
}

func (n *epollNotifier) Close() error {
	return unix.Close(n.epfd)
}
