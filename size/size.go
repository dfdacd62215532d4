/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2022 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Package size implements a byte-count type parsed from and formatted as
// human-readable strings ("5MB", "1.5GB"), for configuration fields such
// as a log file's buffer size.
package size

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Size is a byte count, binary (1024-based) like the rest of the corpus'
// buffer and file-size fields.
type Size uint64

const (
	SizeNul  Size = 0
	SizeUnit Size = 1
	SizeKilo Size = SizeUnit << 10
	SizeMega Size = SizeKilo << 10
	SizeGiga Size = SizeMega << 10
	SizeTera Size = SizeGiga << 10
	SizePeta Size = SizeTera << 10
	SizeExa  Size = SizePeta << 10
)

var units = []struct {
	suffix string
	size   Size
}{
	{"EB", SizeExa},
	{"PB", SizePeta},
	{"TB", SizeTera},
	{"GB", SizeGiga},
	{"MB", SizeMega},
	{"KB", SizeKilo},
	{"B", SizeUnit},
}

// String renders s as the largest unit that keeps the mantissa >= 1, e.g.
// "5.00MB". Zero is rendered as "0B".
func (s Size) String() string {
	for _, u := range units {
		if s >= u.size && u.size > SizeUnit {
			return fmt.Sprintf("%.2f%s", float64(s)/float64(u.size), u.suffix)
		}
	}
	return fmt.Sprintf("%dB", uint64(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, parsing the same
// human-readable forms Parse accepts.
func (s *Size) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Parse reads a human-readable size like "5MB", "1.5GB", "100" (bytes),
// or a single-letter unit ("1K", "1M", ...), case-insensitively.
func Parse(s string) (Size, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("size: empty value")
	}

	upper := strings.ToUpper(raw)
	mult := SizeUnit
	numPart := upper

	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			mult = u.size
			numPart = strings.TrimSuffix(upper, u.suffix)
			break
		}
	}

	numPart = strings.TrimSpace(numPart)
	if numPart == "" {
		return 0, fmt.Errorf("size: missing numeric value in %q", s)
	}

	f, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("size: invalid numeric value in %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("size: negative value in %q", s)
	}

	return Size(f * float64(mult)), nil
}

// ParseSize is a deprecated alias for Parse, kept for call sites written
// against the teacher's older name.
func ParseSize(s string) (Size, error) {
	return Parse(s)
}

// ViperDecoderHook returns a mapstructure-compatible decode hook that
// converts a string into a Size, for wiring into viper's Unmarshal.
func ViperDecoderHook() func(reflect.Type, reflect.Type, interface{}) (interface{}, error) {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(Size(0)) {
			return data, nil
		}
		if from.Kind() != reflect.String {
			return data, nil
		}
		return Parse(data.(string))
	}
}
