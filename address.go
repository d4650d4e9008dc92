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
	"math"
	"strconv"
	"strings"
)

// CellAddress identifies a cell by zero-based row and column.
type CellAddress struct {
	Row int
	Col int
}

// CellRange is an inclusive rectangle of cells. Start and End may be given in
// any order, use Normalize before iterating.
type CellRange struct {
	Start CellAddress
	End   CellAddress
}

// ColumnToLetters converts a zero-based column index to its bijective base-26
// letters, i.e. 0 is A, 25 is Z, 26 is AA.
func ColumnToLetters(col int) string {
	if col < 0 {
		panic(fmt.Sprintf("unexpected negative column %d", col))
	}

	// There is no zero digit in this numbering: after emitting each letter
	// we must step down by one before dividing further.
	var buf [16]byte
	i := len(buf)
	for col >= 0 {
		i--
		buf[i] = byte('A' + col%26)
		col = col/26 - 1
	}
	return string(buf[i:])
}

// LettersToColumn is the inverse of ColumnToLetters. Letters are case
// insensitive.
func LettersToColumn(letters string) (int, bool) {
	if letters == "" {
		return 0, false
	}
	col := 0
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		switch {
		case 'A' <= c && c <= 'Z':
			c = c - 'A' + 1
		case 'a' <= c && c <= 'z':
			c = c - 'a' + 1
		default:
			return 0, false
		}
		if col > (math.MaxInt32-int(c))/26 {
			return 0, false
		}
		col = col*26 + int(c)
	}
	return col - 1, true
}

// ParseAddress parses an A1-style reference. It accepts one or more letters
// immediately followed by one or more digits, nothing else.
func ParseAddress(text string) (CellAddress, bool) {
	split := 0
	for split < len(text) && isLetter(text[split]) {
		split++
	}
	if split == 0 || split == len(text) {
		return CellAddress{}, false
	}
	digits := text[split:]
	for i := 0; i < len(digits); i++ {
		if !isDigit(digits[i]) {
			return CellAddress{}, false
		}
	}

	col, ok := LettersToColumn(text[:split])
	if !ok {
		return CellAddress{}, false
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 || row > math.MaxInt32 {
		return CellAddress{}, false
	}
	return CellAddress{Row: row - 1, Col: col}, true
}

// MustParseAddress is like ParseAddress but panics on malformed input.
func MustParseAddress(text string) CellAddress {
	addr, ok := ParseAddress(text)
	if !ok {
		panic(fmt.Sprintf("malformed cell address %q", text))
	}
	return addr
}

// FormatAddress returns the canonical A1 form of addr.
func FormatAddress(addr CellAddress) string {
	return ColumnToLetters(addr.Col) + strconv.Itoa(addr.Row+1)
}

func (addr CellAddress) String() string {
	return FormatAddress(addr)
}

// ParseRange parses `<ref>:<ref>`. Whitespace around either bound is
// tolerated.
func ParseRange(text string) (CellRange, bool) {
	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return CellRange{}, false
	}
	start, ok := ParseAddress(strings.TrimSpace(parts[0]))
	if !ok {
		return CellRange{}, false
	}
	end, ok := ParseAddress(strings.TrimSpace(parts[1]))
	if !ok {
		return CellRange{}, false
	}
	return CellRange{start, end}, true
}

// Normalize returns the same rectangle with Start at its top-left corner and
// End at its bottom-right corner. Rows and columns are ordered independently,
// so A5:A1 and B1:A2 are both handled.
func (r CellRange) Normalize() CellRange {
	n := r
	if n.Start.Row > n.End.Row {
		n.Start.Row, n.End.Row = n.End.Row, n.Start.Row
	}
	if n.Start.Col > n.End.Col {
		n.Start.Col, n.End.Col = n.End.Col, n.Start.Col
	}
	return n
}

// Addresses lists every cell of the range in row-major order.
func (r CellRange) Addresses() []CellAddress {
	n := r.Normalize()
	addrs := make([]CellAddress, 0, n.Size())
	for row := n.Start.Row; row <= n.End.Row; row++ {
		for col := n.Start.Col; col <= n.End.Col; col++ {
			addrs = append(addrs, CellAddress{row, col})
		}
	}
	return addrs
}

// Size is the number of cells covered by the range.
func (r CellRange) Size() int {
	n := r.Normalize()
	return (n.End.Row - n.Start.Row + 1) * (n.End.Col - n.Start.Col + 1)
}

func (r CellRange) Contains(addr CellAddress) bool {
	n := r.Normalize()
	return n.Start.Row <= addr.Row && addr.Row <= n.End.Row &&
		n.Start.Col <= addr.Col && addr.Col <= n.End.Col
}

func (r CellRange) String() string {
	return r.Start.String() + ":" + r.End.String()
}

func isLetter(c byte) bool {
	return ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
