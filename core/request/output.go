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

// EmitResult mirrors core/filter.Result without importing that package
// (which already imports this one for request.Chain): OK/Again/Error in
// the same order, so a caller holding the built body filter chain can
// translate one to the other with a plain type conversion.
type EmitResult uint8

const (
	EmitOK EmitResult = iota
	EmitAgain
	EmitError
)

// Emitter is the entry point into the body filter chain a connection
// driver builds once per connection and installs on every Request it
// hands out. Content handlers call Request.Emit to push produced output;
// Emitter itself decides whether that means an immediate write or a
// postponed-output append, depending on wire ownership (spec.md §4.7).
type Emitter func(r *Request, c Chain) (EmitResult, error)

// Emit forwards c to the installed Emitter. A request with no Emitter
// installed (e.g. one driven outside a real connection, as in a unit
// test) reports ErrorNoOutputSink.
func (r *Request) Emit(c Chain) (EmitResult, error) {
	if r.Output == nil {
		return EmitError, ErrorNoOutputSink.Error(nil)
	}
	return r.Output(r, c)
}
