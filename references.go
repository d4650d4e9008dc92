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
	"strings"

	"github.com/xuri/efp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// References lists the cells and ranges read by formula, in order of
// appearance and without duplicates. Single cells are reported as one-cell
// ranges. Literals reference nothing.
//
// Hosts may use this to decide which displayed values to refresh when a cell
// changes.
func References(formula string) []CellRange {
	if !strings.HasPrefix(formula, FormulaPrefix) {
		return nil
	}

	var (
		refs []CellRange
		seen = make(map[CellRange]bool)
	)
	ps := efp.ExcelParser()
	for _, token := range ps.Parse(upper(formula[len(FormulaPrefix):])) {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}

		var (
			r  CellRange
			ok bool
		)
		if strings.Contains(token.TValue, ":") {
			r, ok = ParseRange(token.TValue)
		} else {
			var addr CellAddress
			addr, ok = ParseAddress(token.TValue)
			r = CellRange{addr, addr}
		}
		if !ok {
			continue
		}
		if r = r.Normalize(); !seen[r] {
			seen[r] = true
			refs = append(refs, r)
		}
	}
	return refs
}

// DependsOn reports whether formula reads the cell at addr.
func DependsOn(formula string, addr CellAddress) bool {
	for _, r := range References(formula) {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}
