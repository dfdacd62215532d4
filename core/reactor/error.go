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

import "github.com/sabouaram/golib/errors"

const (
	ErrorNotifierCreate errors.CodeError = iota + errors.MinPkgHttpCoreReactor
	ErrorNotifierRegister
	ErrorNotifierUnregister
	ErrorNotifierPoll
	ErrorListenerBind
	ErrorAcceptFailed
	ErrorConnectionPoolExhausted
	ErrorFreeListEmpty
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorNotifierCreate)
	errors.RegisterIdFctMessage(ErrorNotifierCreate, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorNotifierCreate:
		return "cannot create readiness notifier"
	case ErrorNotifierRegister:
		return "cannot register event with readiness notifier"
	case ErrorNotifierUnregister:
		return "cannot unregister event from readiness notifier"
	case ErrorNotifierPoll:
		return "readiness notifier poll failed"
	case ErrorListenerBind:
		return "cannot bind listening endpoint"
	case ErrorAcceptFailed:
		return "accept failed on listening endpoint"
	case ErrorConnectionPoolExhausted:
		return "connection pool exhausted and reusable-idle queue is empty"
	case ErrorFreeListEmpty:
		return "connection free list is empty"
	}

	return ""
}
