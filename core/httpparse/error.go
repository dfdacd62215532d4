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

package httpparse

import "github.com/sabouaram/golib/errors"

const (
	ErrorInvalidMethod errors.CodeError = iota + errors.MinPkgHttpCoreParser
	ErrorInvalidRequest
	ErrorInvalid09Method
	ErrorInvalidHeader
	ErrorHeaderTooLarge
	ErrorInvalidChunked
	ErrorLargeBufferRequired
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorInvalidMethod)
	errors.RegisterIdFctMessage(ErrorInvalidMethod, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorInvalidMethod:
		return "invalid request method"
	case ErrorInvalidRequest:
		return "invalid request line"
	case ErrorInvalid09Method:
		return "invalid HTTP/0.9 request"
	case ErrorInvalidHeader:
		return "invalid header field"
	case ErrorHeaderTooLarge:
		return "header field exceeds the configured buffer size"
	case ErrorInvalidChunked:
		return "invalid chunked transfer-coding"
	case ErrorLargeBufferRequired:
		return "request-line parse requires a large header buffer"
	}

	return ""
}
