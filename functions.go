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

// aggregate is a function over the numeric cells of a range.
type aggregate interface {
	init() accumulator
}

type accumulator interface {
	add(value float64)
	result() float64
}

var aggregates = map[string]aggregate{
	"SUM":     sumAggregate{},
	"AVERAGE": averageAggregate{},
}

// Assert that all aggregates implement the aggregate interface.
var _ = []aggregate{
	sumAggregate{},
	averageAggregate{},
}

type sumAggregate struct{}

type sumAccumulator struct {
	sum float64
}

func (sumAggregate) init() accumulator {
	return &sumAccumulator{}
}

func (acc *sumAccumulator) add(value float64) {
	acc.sum += value
}

func (acc *sumAccumulator) result() float64 {
	return acc.sum
}

type averageAggregate struct{}

type averageAccumulator struct {
	sum   float64
	count int
}

func (averageAggregate) init() accumulator {
	return &averageAccumulator{}
}

func (acc *averageAccumulator) add(value float64) {
	acc.sum += value
	acc.count++
}

// result is 0 over a range without numbers, rather than NaN.
func (acc *averageAccumulator) result() float64 {
	if acc.count == 0 {
		return 0
	}
	return acc.sum / float64(acc.count)
}

// IsAggregate reports whether name, in any case, is a supported aggregate.
func IsAggregate(name string) bool {
	_, ok := aggregates[upper(name)]
	return ok
}
