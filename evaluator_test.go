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
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *Zuite) TestEvaluateFormula_literals() {
	store := NewMemStore()
	cases := []string{
		"",
		"hello",
		"42",
		" =1+1",
		"#ERROR!",
	}
	for _, input := range cases {
		assert.Equal(s.T(), NewText(input), EvaluateFormula(input, store), input)
	}
}

func (s *Zuite) TestEvaluateFormula_arithmetic() {
	store := sheet(map[string]string{
		"A1": "10",
		"A2": "20",
		"A3": "-3",
		"A4": "=A1+A2",
		"A5": "text",
		"B1": "2.5",
	})
	cases := map[string]string{
		"=2+3*4":        "14",
		"=(2+3)*4":      "20",
		"=-3+5":         "2",
		"=A1+A2":        "30",
		"=a1 + a2":      "30",
		"=A1*A3":        "-30",
		"=A1-A3":        "13",
		"=-A3":          "3",
		"=A4*2":         "60",
		"=A5+1":         "1",
		"=Z99+1":        "1",
		"=A1/B1":        "4",
		"=A1*A1+A1":     "110",
		"=(A1+A2)/A1":   "3",
		"=1/3":          "0.3333333333333333",
		"=   7   ":      "7",
		"=A1A2":         ErrError,
		"=A1 A2":        ErrError,
		"=2+*3":         ErrError,
		"=1/0":          ErrError,
		"=0/0":          ErrError,
		"=A1/(A2-A2)":   ErrError,
		"=":             ErrError,
		"=FOO":          ErrError,
		"=A0+1":         ErrError,
		"=1e3":          ErrError,
		"=(1":           ErrError,
		"=SUM(A1:A2)+1": ErrError,
		"=MAX(A1:A2)":   ErrError,
		"=A1:A2":        ErrError,
		"=3 4":          ErrError,
		"=A1+@":         ErrError,
	}
	for formula, expected := range cases {
		assert.Equal(s.T(), expected, EvaluateFormula(formula, store).String(), formula)
	}
}

func (s *Zuite) TestEvaluateFormula_referencesArePositional() {
	store := sheet(map[string]string{
		"A1":  "1",
		"A10": "100",
	})
	require.Equal(s.T(), NewNumber(101), EvaluateFormula("=A1+A10", store))
	require.Equal(s.T(), NewNumber(101), EvaluateFormula("=A10+A1", store))
}

func (s *Zuite) TestEvaluateFormula_aggregates() {
	store := sheet(map[string]string{
		"A1": "1",
		"A2": "2",
		"A3": "3",
		"B1": "foo",
		"B2": "=A1*10",
		"B3": "=1/0",
		"C1": "x",
		"C2": "y",
	})
	cases := map[string]string{
		"=SUM(A1:A3)":       "6",
		"=SUM(A3:A1)":       "6",
		"=sum(a1:a3)":       "6",
		"= SUM ( A1 : A3 )": "6",
		"=SUM(A1:A1)":       "1",
		"=SUM(A1:B3)":       "16",
		"=SUM(B3:A1)":       "16",
		"=SUM(D1:E5)":       "0",
		"=AVERAGE(A1:A3)":   "2",
		"=AVERAGE(A1:B3)":   "4",
		"=AVERAGE(C1:C2)":   "0",
		"=AVERAGE(C1:D9)":   "0",
		"=AVERAGE(A3:A1)":   "2",
		"=SUM(A1:1A)":       ErrError,
		"=SUM(A1:ZZ)":       ErrError,
		"=SUM(ZZ:A1)":       ErrError,
		"=SUM(:A1)":         ErrError,
		"=SUM(A1:)":         ErrError,
		"=SUM(A0:A1)":       ErrError,
		"=AVERAGE(A1)":      ErrError,
		"=SUM(A1:A2:A3)":    ErrError,
	}
	for formula, expected := range cases {
		assert.Equal(s.T(), expected, EvaluateFormula(formula, store).String(), formula)
	}
}

func (s *Zuite) TestEvaluateFormula_rangeTooLarge() {
	e := NewEvaluator(&Options{MaxRangeSize: 100})
	store := NewMemStore()
	require.Equal(s.T(), NewNumber(0), e.EvaluateFormula("=SUM(A1:J10)", store))
	require.Equal(s.T(), vError, e.EvaluateFormula("=SUM(A1:J11)", store))
	require.Equal(s.T(), vError, e.EvaluateFormula("=SUM(A1:A2147483647)", store))
	require.Equal(s.T(), vError, EvaluateFormula("=SUM(A1:XFD1048576)", store))
}

func (s *Zuite) TestResolveCellForDisplay() {
	store := sheet(map[string]string{
		"A1": "10",
		"A2": "hello",
		"A3": "=A1*2",
		"A4": "  padded ",
	})
	cases := map[string]Value{
		"A1": NewText("10"),
		"A2": NewText("hello"),
		"A3": NewNumber(20),
		"A4": NewText("  padded "),
		"A5": NewText(""),
	}
	for ref, expected := range cases {
		assert.Equal(s.T(), expected, ResolveCellForDisplay(MustParseAddress(ref), store), ref)
	}
}

func (s *Zuite) TestResolveCellForDisplay_cycles() {
	cases := []struct {
		contents map[string]string
		circular []string
	}{
		// self
		{
			map[string]string{"A1": "=A1+1"},
			[]string{"A1"},
		},
		// direct
		{
			map[string]string{"A1": "=A2", "A2": "=A1"},
			[]string{"A1", "A2"},
		},
		// indirect
		{
			map[string]string{"A1": "=B1+1", "B1": "=C1*2", "C1": "=A1"},
			[]string{"A1", "B1", "C1"},
		},
		// through an aggregate
		{
			map[string]string{"A1": "=SUM(B1:B2)", "B1": "1", "B2": "=A1"},
			[]string{"A1", "B2"},
		},
		// range containing its own cell
		{
			map[string]string{"A1": "1", "A2": "2", "A3": "=SUM(A1:A3)"},
			[]string{"A3"},
		},
		// downstream of a cycle
		{
			map[string]string{"A1": "=A2", "A2": "=A1", "B1": "=A1+1"},
			[]string{"A1", "A2", "B1"},
		},
	}
	for _, ex := range cases {
		store := sheet(ex.contents)
		for _, ref := range ex.circular {
			assert.Equal(s.T(), vCircular, ResolveCellForDisplay(MustParseAddress(ref), store), "%s in %v", ref, ex.contents)
		}
	}
}

func (s *Zuite) TestResolveCellForDisplay_siblingsAreNotCycles() {
	store := sheet(map[string]string{
		"A1": "5",
		"B1": "=A1*2",
		"C1": "=A1+B1",
		"D1": "=C1+C1+B1",
		"E1": "=SUM(A1:D1)",
		"F1": "=AVERAGE(A1:C1)",
		"G1": "=F1+E1+F1",
	})
	require.Equal(s.T(), NewNumber(40), ResolveCellForDisplay(MustParseAddress("D1"), store))
	require.Equal(s.T(), NewNumber(70), ResolveCellForDisplay(MustParseAddress("E1"), store))
	require.Equal(s.T(), NewNumber(10), ResolveCellForDisplay(MustParseAddress("F1"), store))
	require.Equal(s.T(), NewNumber(90), ResolveCellForDisplay(MustParseAddress("G1"), store))
}

func (s *Zuite) TestResolveCellForDisplay_errorsReadAsZero() {
	store := sheet(map[string]string{
		"A1": "=1/0",
		"A2": "=A1+1",
		"A3": "=SUM(A1:A2)",
		"A4": "=AVERAGE(A1:A2)",
	})
	require.Equal(s.T(), vError, ResolveCellForDisplay(MustParseAddress("A1"), store))
	require.Equal(s.T(), NewNumber(1), ResolveCellForDisplay(MustParseAddress("A2"), store))
	require.Equal(s.T(), NewNumber(1), ResolveCellForDisplay(MustParseAddress("A3"), store))
	require.Equal(s.T(), NewNumber(1), ResolveCellForDisplay(MustParseAddress("A4"), store))
}

func (s *Zuite) TestResolveCellForDisplay_idempotent() {
	store := sheet(map[string]string{
		"A1": "3",
		"A2": "=A1*A1",
		"A3": "=SUM(A1:A2)",
		"B1": "=B2",
		"B2": "=B1",
	})
	for _, ref := range []string{"A2", "A3", "B1"} {
		addr := MustParseAddress(ref)
		first := ResolveCellForDisplay(addr, store)
		for i := 0; i < 5; i++ {
			require.Equal(s.T(), first, ResolveCellForDisplay(addr, store), ref)
		}
	}
}

func (s *Zuite) TestResolveCellForDisplay_depthBound() {
	store := chain(50)
	last := MustParseAddress("A50")

	shallow := NewEvaluator(&Options{MaxDepth: 10})
	require.Equal(s.T(), vError.String(), shallow.ResolveCellForDisplay(last, store).String())
	require.Equal(s.T(), NewNumber(1), shallow.ResolveCellForDisplay(MustParseAddress("A10"), store))

	require.Equal(s.T(), NewNumber(1), ResolveCellForDisplay(last, store))
}

func (s *Zuite) TestResolveCellForDisplay_deepChainDoesNotOverflow() {
	store := chain(20000)
	require.Equal(s.T(), vError.String(), ResolveCellForDisplay(MustParseAddress("A20000"), store).String())
	require.Equal(s.T(), NewNumber(1), ResolveCellForDisplay(MustParseAddress("A1000"), store))
}

func (s *Zuite) TestEvaluateSheet() {
	store := sheet(map[string]string{
		"A1": "2",
		"A2": "=A1*3",
		"B1": "label",
		"C1": "=C1",
	})
	values := NewEvaluator(nil).EvaluateSheet(store)
	require.Equal(s.T(), map[CellAddress]Value{
		MustParseAddress("A1"): NewText("2"),
		MustParseAddress("A2"): NewNumber(6),
		MustParseAddress("B1"): NewText("label"),
		MustParseAddress("C1"): vCircular,
	}, values)
}

func (s *Zuite) TestVisited() {
	var root *visited
	require.Equal(s.T(), 0, root.len())
	require.False(s.T(), root.contains(CellAddress{}))

	a1 := root.with(MustParseAddress("A1"))
	b1 := a1.with(MustParseAddress("B1"))
	c1 := a1.with(MustParseAddress("C1"))

	require.Equal(s.T(), 2, b1.len())
	require.True(s.T(), b1.contains(MustParseAddress("A1")))
	require.False(s.T(), b1.contains(MustParseAddress("C1")))
	require.False(s.T(), c1.contains(MustParseAddress("B1")))
	require.Equal(s.T(), "A1 -> B1", b1.String())
}

// chain makes A1 hold 1, and every following cell of column A reference the
// one above it.
func chain(length int) *MemStore {
	store := NewMemStore()
	store.Set(CellAddress{0, 0}, "1")
	for row := 1; row < length; row++ {
		store.Set(CellAddress{row, 0}, CellContent(fmt.Sprintf("=A%d", row)))
	}
	return store
}

func (s *Zuite) TestIsAggregate() {
	require.True(s.T(), IsAggregate("SUM"))
	require.True(s.T(), IsAggregate("average"))
	require.False(s.T(), IsAggregate("MAX"))
	require.False(s.T(), IsAggregate(strings.Repeat("SUM", 2)))
}

func (s *Zuite) TestEvaluateFormula_leadingNumbers() {
	store := sheet(map[string]string{
		"A1": "12kg",
		"A2": "kg",
		"A3": "3 apples",
	})
	cases := map[string]string{
		"=A1+1":           "13",
		"=A1*A3":          "36",
		"=A2+1":           "1",
		"=SUM(A1:A3)":     "15",
		"=AVERAGE(A1:A1)": "12",
		"=AVERAGE(A1:A3)": "7.5",
		"=AVERAGE(A2:A2)": "0",
	}
	for formula, expected := range cases {
		assert.Equal(s.T(), expected, EvaluateFormula(formula, store).String(), formula)
	}
}

func (s *Zuite) TestEvaluateFormula_unicodeSpaces() {
	store := sheet(map[string]string{
		"A1": "1",
		"A2": "2",
		"B1": "5",
	})
	cases := []struct {
		formula  string
		expected string
	}{
		{"=B1\u00a0+1", "6"},
		{"=\u3000B1 *\u2009B1", "25"},
		{"=SUM(A1:\u00a0A2)", "3"},
		{"=\u00a0AVERAGE\u00a0(A1:A2)\u00a0", "1.5"},
		{"=B1\u0085+1", ErrError},
	}
	for _, ex := range cases {
		assert.Equal(s.T(), ex.expected, EvaluateFormula(ex.formula, store).String(), ex.formula)
	}
}
