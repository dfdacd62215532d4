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

package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sabouaram/golib/core/request"
)

var statusText = map[int]string{
	200: "OK",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	416: "Range Not Satisfiable",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// StatusText returns the reason phrase for a status code, falling back
// to a generic label for codes with no entry.
func StatusText(code int) string {
	if t, ok := statusText[code]; ok {
		return t
	}
	return "Status"
}

// Header builds the status line and response headers into a single
// in-memory chunk, the default HeaderFilter implementation. Content-Length
// (when known) and Connection are synthesised here; handler-added headers
// are appended verbatim and in order.
func Header(r *request.Request) (request.Chain, error) {
	status := r.Status
	if status == 0 {
		status = 200
	}

	var b strings.Builder
	proto := "HTTP/1.0"
	if r.HTTP11 {
		proto = "HTTP/1.1"
	}
	fmt.Fprintf(&b, "%s %d %s\r\n", proto, status, StatusText(status))

	hasContentLength := false
	hasConnection := false
	for _, h := range r.ResponseHeaders {
		lower := strings.ToLower(h.Name)
		if lower == "content-length" {
			hasContentLength = true
		}
		if lower == "connection" {
			hasConnection = true
		}
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}

	if !hasContentLength && r.ResponseContentLength >= 0 {
		fmt.Fprintf(&b, "Content-Length: %s\r\n", strconv.FormatInt(r.ResponseContentLength, 10))
	}
	if !hasConnection {
		if r.KeepAlive {
			b.WriteString("Connection: keep-alive\r\n")
		} else {
			b.WriteString("Connection: close\r\n")
		}
	}
	b.WriteString("\r\n")

	return request.Chain{{Buf: []byte(b.String())}}, nil
}
