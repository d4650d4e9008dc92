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
	"regexp"
	"strconv"
	"strings"

	log "github.com/mgutz/logxi/v1"
)

// Options configures an Evaluator. The zero value, or nil, selects defaults.
type Options struct {
	// MaxDepth bounds the length of a reference chain, i.e. how many
	// formulas may be resolved one within another. Chains going deeper
	// evaluate to #ERROR!. Defaults to DefaultMaxDepth.
	MaxDepth int

	// MaxRangeSize bounds the number of cells an aggregate may visit.
	// Defaults to DefaultMaxRangeSize.
	MaxRangeSize int

	// Logger receives debug events, such as detected cycles. Defaults to
	// the package logger.
	Logger log.Logger
}

const (
	DefaultMaxDepth     = 1024
	DefaultMaxRangeSize = 1 << 20
)

var logger = log.New("formulas")

// Evaluator computes cell values. Evaluators hold no state across calls, and
// may be used concurrently provided the stores they read are not mutated
// mid-evaluation.
type Evaluator struct {
	maxDepth     int
	maxRangeSize int
	logger       log.Logger
}

func NewEvaluator(opts *Options) *Evaluator {
	e := &Evaluator{
		maxDepth:     DefaultMaxDepth,
		maxRangeSize: DefaultMaxRangeSize,
		logger:       logger,
	}
	if opts != nil {
		if opts.MaxDepth > 0 {
			e.maxDepth = opts.MaxDepth
		}
		if opts.MaxRangeSize > 0 {
			e.maxRangeSize = opts.MaxRangeSize
		}
		if opts.Logger != nil {
			e.logger = opts.Logger
		}
	}
	return e
}

var defaultEvaluator = NewEvaluator(nil)

// EvaluateFormula evaluates formula against store with default options.
func EvaluateFormula(formula string, store Store) Value {
	return defaultEvaluator.EvaluateFormula(formula, store)
}

// ResolveCellForDisplay computes what the cell at addr displays, with
// default options.
func ResolveCellForDisplay(addr CellAddress, store Store) Value {
	return defaultEvaluator.ResolveCellForDisplay(addr, store)
}

// EvaluateFormula evaluates formula, the text of a cell, against store. Text
// not starting with `=` is returned unchanged.
func (e *Evaluator) EvaluateFormula(formula string, store Store) Value {
	return e.evaluate(formula, store, nil)
}

// ResolveCellForDisplay computes what the cell at addr displays: its literal
// text as-is, or the result of its formula. An empty cell displays as empty
// text.
func (e *Evaluator) ResolveCellForDisplay(addr CellAddress, store Store) Value {
	content, ok := store.Get(addr)
	if !ok || content.IsEmpty() {
		return vEmpty
	}
	if !content.IsFormula() {
		return &Text{string(content)}
	}
	return e.evaluate(string(content), store, (*visited)(nil).with(addr))
}

// SheetStore is a Store which can enumerate its populated cells.
type SheetStore interface {
	Store

	// Addresses returns all populated addresses.
	Addresses() []CellAddress
}

// EvaluateSheet computes the displayed value of every populated cell.
func (e *Evaluator) EvaluateSheet(store SheetStore) map[CellAddress]Value {
	values := make(map[CellAddress]Value)
	for _, addr := range store.Addresses() {
		values[addr] = e.ResolveCellForDisplay(addr, store)
	}
	return values
}

var (
	// pAggregate matches a whole formula body calling an aggregate over a
	// range. Bounds are captured loosely so that malformed ones are
	// reported as #ERROR! rather than falling through to arithmetic.
	pAggregate = regexp.MustCompile(strings.ReplaceAll(
		`^_*([A-Z]+)_*\(_*([A-Z0-9]*)_*:_*([A-Z0-9]*)_*\)_*$`,
		"_", "["+spaceClass+"]"))

	// pReference matches cell references within an upper-cased body.
	pReference = regexp.MustCompile(`[A-Z]+[0-9]+`)
)

// vDepth is returned when a reference chain exceeds the maximum depth. It
// displays as #ERROR!, but unlike other errors is never coerced to 0.
var vDepth = &ErrorValue{ErrError}

func (e *Evaluator) evaluate(formula string, store Store, path *visited) Value {
	if !strings.HasPrefix(formula, FormulaPrefix) {
		return &Text{formula}
	}
	body := upper(formula[len(FormulaPrefix):])

	if match := pAggregate.FindStringSubmatch(body); match != nil {
		if agg, ok := aggregates[match[1]]; ok {
			return e.evaluateAggregate(agg, match[2], match[3], store, path)
		}
	}

	return e.evaluateArithmetic(body, store, path)
}

func (e *Evaluator) evaluateAggregate(agg aggregate, from, to string, store Store, path *visited) Value {
	start, ok := ParseAddress(from)
	if !ok {
		return vError
	}
	end, ok := ParseAddress(to)
	if !ok {
		return vError
	}
	r := CellRange{start, end}.Normalize()
	rows, cols := r.End.Row-r.Start.Row+1, r.End.Col-r.Start.Col+1
	if rows > e.maxRangeSize || cols > e.maxRangeSize || rows*cols > e.maxRangeSize {
		e.logger.Debug("range too large", "range", r.String())
		return vError
	}

	acc := agg.init()
	for row := r.Start.Row; row <= r.End.Row; row++ {
		for col := r.Start.Col; col <= r.End.Col; col++ {
			value, numeric, abort := e.resolveForAggregate(CellAddress{row, col}, store, path)
			if abort != nil {
				return abort
			}
			if numeric {
				acc.add(value)
			}
		}
	}
	return NewNumber(acc.result())
}

func (e *Evaluator) evaluateArithmetic(body string, store Store, path *visited) Value {
	var (
		b        strings.Builder
		last     int
		resolved = make(map[CellAddress]float64)
	)
	for _, loc := range pReference.FindAllStringIndex(body, -1) {
		ref := body[loc[0]:loc[1]]
		addr, ok := ParseAddress(ref)
		if !ok {
			return vError
		}
		if path.contains(addr) {
			e.logCircular(addr, path)
			return vCircular
		}

		value, ok := resolved[addr]
		if !ok {
			var abort Value
			value, abort = e.resolveAsNumber(addr, store, path)
			if abort != nil {
				return abort
			}
			resolved[addr] = value
		}

		// Parenthesize so that signs and adjacency stay within the
		// grammar, e.g. A1*A2 with A2 = -3 reads 4*(-3).
		b.WriteString(body[last:loc[0]])
		b.WriteByte('(')
		b.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
		b.WriteByte(')')
		last = loc[1]
	}
	b.WriteString(body[last:])

	value, err := evalArithmetic(b.String())
	if err != nil {
		if e.logger.IsDebug() {
			e.logger.Debug("rejected formula", "formula", body, "err", err)
		}
		return vError
	}
	return NewNumber(value)
}

// resolveAsNumber reads the cell at addr as a number. Absent cells, text, and
// error tokens read as 0. A non-nil abort value, a cycle or a chain which is
// too deep, must be returned as is by the caller.
func (e *Evaluator) resolveAsNumber(addr CellAddress, store Store, path *visited) (float64, Value) {
	value, _, abort := e.resolveForAggregate(addr, store, path)
	return value, abort
}

// resolveForAggregate reads the cell at addr, reporting whether it holds a
// number. Non-numeric cells read as 0.
func (e *Evaluator) resolveForAggregate(addr CellAddress, store Store, path *visited) (float64, bool, Value) {
	content, ok := store.Get(addr)
	if !ok || content.IsEmpty() {
		return 0, false, nil
	}
	if !content.IsFormula() {
		f, ok := readLeadingNumber(string(content))
		return f, ok, nil
	}

	result := e.resolveFormulaCell(addr, content, store, path)
	if result == vCircular || result == vDepth {
		return 0, false, result
	}
	f, ok := AsNumber(result)
	return f, ok, nil
}

func (e *Evaluator) resolveFormulaCell(addr CellAddress, content CellContent, store Store, path *visited) Value {
	if path.contains(addr) {
		e.logCircular(addr, path)
		return vCircular
	}
	if path.len() >= e.maxDepth {
		e.logger.Debug("reference chain too deep", "cell", addr.String(), "depth", path.len())
		return vDepth
	}
	return e.evaluate(string(content), store, path.with(addr))
}

func (e *Evaluator) logCircular(addr CellAddress, path *visited) {
	if e.logger.IsDebug() {
		e.logger.Debug("circular reference", "cell", addr.String(), "path", path.String())
	}
}

// visited is the chain of formula cells being resolved, innermost first. It
// is immutable: extending it shares the tail, so sibling references within
// one formula never observe each other.
type visited struct {
	addr   CellAddress
	parent *visited
	depth  int
}

func (v *visited) with(addr CellAddress) *visited {
	return &visited{
		addr:   addr,
		parent: v,
		depth:  v.len() + 1,
	}
}

func (v *visited) contains(addr CellAddress) bool {
	for ; v != nil; v = v.parent {
		if v.addr == addr {
			return true
		}
	}
	return false
}

func (v *visited) len() int {
	if v == nil {
		return 0
	}
	return v.depth
}

func (v *visited) String() string {
	var refs []string
	for ; v != nil; v = v.parent {
		refs = append(refs, v.addr.String())
	}
	// outermost first
	for i, j := 0, len(refs)-1; i < j; i, j = i+1, j-1 {
		refs[i], refs[j] = refs[j], refs[i]
	}
	return strings.Join(refs, " -> ")
}
