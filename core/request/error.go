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

package request

import "github.com/sabouaram/golib/errors"

const (
	ErrorRequestLineTooLarge errors.CodeError = iota + errors.MinPkgHttpCoreRequest
	ErrorHeaderSectionTooLarge
	ErrorMissingHostHeader
	ErrorInvalidContentLength
	ErrorConflictingBodyFraming
	ErrorNoServerMatch
	ErrorSubrequestBudgetExceeded
	ErrorNoOutputSink
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorRequestLineTooLarge)
	errors.RegisterIdFctMessage(ErrorRequestLineTooLarge, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorRequestLineTooLarge:
		return "request line exceeds the configured large-buffer limit"
	case ErrorHeaderSectionTooLarge:
		return "header section exceeds the configured large-buffer limit"
	case ErrorMissingHostHeader:
		return "HTTP/1.1 request is missing the required Host header"
	case ErrorInvalidContentLength:
		return "Content-Length header is not a valid non-negative integer"
	case ErrorConflictingBodyFraming:
		return "request sets both Content-Length and a chunked Transfer-Encoding"
	case ErrorNoServerMatch:
		return "no server block matches the request's Host header and no default server is configured"
	case ErrorSubrequestBudgetExceeded:
		return "subrequest budget exceeded for this main request"
	case ErrorNoOutputSink:
		return "request has no output sink installed; it was never bound to a connection driver"
	}

	return ""
}
