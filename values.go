// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package formulas

import (
	"math"
	"strconv"
	"strings"
)

// Value represents the result of evaluating a cell or a formula.
type Value interface {
	// Equal returns a comparison on this value against that value.
	Equal(that Value) bool

	// String returns the display form of the value.
	String() string
}

var _ []Value = []Value{
	// Assert that all results are Value.
	&Number{},
	&Text{},
	&ErrorValue{},
}

// Number represents a finite number.
type Number struct {
	value float64
}

// Text represents literal text, as entered in a cell.
type Text struct {
	value string
}

// ErrorValue represents an error token such as #ERROR!. Error tokens are
// displayed in place of a value, they are not Go errors.
type ErrorValue struct {
	token string
}

const (
	// ErrError covers malformed ranges, unparseable expressions, disallowed
	// characters, trailing input, and non-finite results.
	ErrError = "#ERROR!"

	// ErrCircular signals a reference cycle.
	ErrCircular = "#CIRCULAR!"
)

var (
	vError    = &ErrorValue{ErrError}
	vCircular = &ErrorValue{ErrCircular}
	vZero     = &Number{0}
	vEmpty    = &Text{""}
)

// NewNumber returns a number value. Non-finite inputs yield #ERROR!, since no
// cell ever displays NaN or Infinity.
func NewNumber(value float64) Value {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return vError
	}
	return &Number{value}
}

func NewText(value string) Value {
	return &Text{value}
}

// NewErrorValue returns the value for an error token, e.g. ErrCircular.
func NewErrorValue(token string) Value {
	return &ErrorValue{token}
}

// NewValue reads the textual form of a value: an error token starting with
// `#`, a number, a quoted text, or otherwise bare text.
func NewValue(value string) Value {
	switch {
	case value == ErrError || value == ErrCircular:
		return &ErrorValue{value}
	case len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`):
		if unquoted, err := strconv.Unquote(value); err == nil {
			return &Text{unquoted}
		}
		return &Text{value}
	}
	if f, ok := parseNumber(value); ok {
		return &Number{f}
	}
	return &Text{value}
}

func (value *Number) Float64() float64 {
	return value.value
}

func (value *Number) Equal(that Value) bool {
	typed, ok := that.(*Number)
	if !ok {
		return false
	}
	return value.value == typed.value
}

func (value *Number) String() string {
	return strconv.FormatFloat(value.value, 'f', -1, 64)
}

func (value *Text) Equal(that Value) bool {
	typed, ok := that.(*Text)
	if !ok {
		return false
	}
	return value.value == typed.value
}

func (value *Text) String() string {
	return value.value
}

func (value *ErrorValue) Token() string {
	return value.token
}

func (value *ErrorValue) Equal(that Value) bool {
	typed, ok := that.(*ErrorValue)
	if !ok {
		return false
	}
	return value.token == typed.token
}

func (value *ErrorValue) String() string {
	return value.token
}

// IsError reports whether value is an error token.
func IsError(value Value) bool {
	_, ok := value.(*ErrorValue)
	return ok
}

// AsNumber reports the numeric reading of a value. Numbers are themselves,
// text is read as a number when it parses as one, error tokens are not
// numeric.
func AsNumber(value Value) (float64, bool) {
	switch v := value.(type) {
	case *Number:
		return v.value, true
	case *Text:
		return parseNumber(v.value)
	default:
		return 0, false
	}
}

// parseNumber reads text which must be a finite number as a whole, such as
// an expected value.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// readLeadingNumber reads the number at the start of literal cell text,
// ignoring whatever follows it: `12kg` reads 12, `.5` reads 0.5, and `kg12`
// is not numeric. Leading whitespace is skipped. An exponent is only part of
// the number when digits follow it.
func readLeadingNumber(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, isSpace)

	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intDigits := i - start

	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		fracDigits = j - i - 1
		if intDigits != 0 || fracDigits != 0 {
			i = j
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return 0, false
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}

	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
