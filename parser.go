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
	"fmt"
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// parser is a recursive-descent parser for arithmetic over numbers. It
// evaluates as it parses:
//
//	expr   := term (('+' | '-') term)*
//	term   := factor (('*' | '/') factor)*
//	factor := '(' expr ')' | ('+' | '-') factor | number
//	number := digits ('.' digits)?
//
// Only digits, dots, whitespace and `+-*/()` may appear in the input.
// Whitespace includes the Unicode space separators, e.g. U+00A0.
type parser struct {
	src   string
	pos   int
	depth int
}

// spaceClass is the body of a character class matching the bytes and runes
// isSpace accepts.
const spaceClass = `\t\n\v\f\r \x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}`

var (
	pArithmetic = regexp.MustCompile(`^[0-9.+\-*/()` + spaceClass + `]*$`)
)

// maxNesting bounds parentheses and unary sign nesting.
const maxNesting = 512

func newParser(src string) *parser {
	return &parser{
		src: src,
	}
}

// evalArithmetic parses and computes src. Division by zero follows IEEE-754
// semantics, leaving it to callers to reject non-finite results.
func evalArithmetic(src string) (float64, error) {
	if !pArithmetic.MatchString(src) {
		return 0, fmt.Errorf("disallowed character in %q", src)
	}
	p := newParser(src)
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("unexpected %q at %d", p.src[p.pos], p.pos)
	}
	return value, nil
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp('+', '-')
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left = left + right
		} else {
			left = left - right
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp('*', '/')
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left = left * right
		} else {
			left = left / right
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxNesting {
		return 0, fmt.Errorf("expression nested too deeply")
	}

	p.skipSpaces()
	if p.pos == len(p.src) {
		return 0, fmt.Errorf("expecting expression, found eof")
	}

	switch c := p.src[p.pos]; {
	case c == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if _, ok := p.peekOp(')'); !ok {
			return 0, fmt.Errorf("expecting ) at %d", p.pos)
		}
		p.pos++
		return value, nil

	case c == '+':
		p.pos++
		return p.parseFactor()

	case c == '-':
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil

	case isDigit(c):
		return p.parseNumber()

	default:
		return 0, fmt.Errorf("unexpected %q at %d", c, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	p.skipDigits()
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		fraction := p.pos
		p.skipDigits()
		if p.pos == fraction {
			return 0, fmt.Errorf("number cannot terminate with dot")
		}
	}
	value, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		// ParseFloat reports out of range values with a ±Inf result,
		// which the caller rejects anyhow.
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return value, nil
		}
		return 0, err
	}
	return value, nil
}

func (p *parser) skipDigits() {
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !isSpace(r) {
			return
		}
		p.pos += size
	}
}

// isSpace reports whether r is whitespace within a formula or ahead of a
// number: ASCII spaces and tabs, the Unicode space separators, line
// separators, and the byte order mark. U+0085 is not a space.
func isSpace(r rune) bool {
	if r == '\uFEFF' {
		return true
	}
	return r != '\u0085' && unicode.IsSpace(r)
}

// peekOp skips whitespace and reports whether the next byte is one of ops,
// without consuming it.
func (p *parser) peekOp(ops ...byte) (byte, bool) {
	p.skipSpaces()
	if p.pos == len(p.src) {
		return 0, false
	}
	c := p.src[p.pos]
	for _, op := range ops {
		if c == op {
			return c, true
		}
	}
	return 0, false
}
