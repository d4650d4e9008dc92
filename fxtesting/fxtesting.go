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

// Package fxtesting runs spreadsheet scenarios written as Gherkin features:
//
//	Scenario: totals
//		Given set
//			| A1 | 10       |
//			| A2 | 20       |
//			| A3 | =A1+A2   |
//		Then assert A3 30
//
// Steps are `load "<file.json>"`, `set`, `clear`, `assert`, and `evaluate`.
package fxtesting

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/gherkin-go"

	"github.com/homelight/formulas"
)

type command interface {
	run(ctx *Context) error
}

// Assert all commands implement the command interface.
var _ = []command{
	cLoad{},
	cSet{},
	cAssert{},
	cEvaluate{},
}

type cLoad struct {
	filename string
}

type cSet struct {
	contents map[string]string
}

type cAssert struct {
	expected map[string]formulas.Value
}

type cEvaluate struct {
	formula  string
	expected formulas.Value
}

const verbs = "load, set, clear, assert, or evaluate"

func stepToCommand(step *gherkin.Step) (command, error) {
	parts := strings.SplitN(strings.TrimSpace(step.Text), " ", 3)
	switch parts[0] {
	case "load":
		if len(parts) != 2 {
			return nil, fmt.Errorf(`%s: expecting load "<filename>"`, step.Text)
		}
		filename, err := strconv.Unquote(parts[1])
		if err != nil {
			return nil, fmt.Errorf(`%s: expecting quoted filename, e.g. "my_sheet.json"`, step.Text)
		}
		return cLoad{filename}, nil
	case "set":
		var set cSet
		switch len(parts) {
		case 1:
			contents, err := tableToPairs(step.Argument)
			if err != nil {
				return nil, fmt.Errorf("%s: %s", step.Text, err)
			}
			set.contents = contents
		case 2:
			return nil, fmt.Errorf("%s: missing content", step.Text)
		case 3:
			set.contents = map[string]string{
				parts[1]: parts[2],
			}
		}
		if err := checkCells(set.contents); err != nil {
			return nil, fmt.Errorf("%s: %s", step.Text, err)
		}
		return set, nil
	case "clear":
		set := cSet{contents: make(map[string]string)}
		switch len(parts) {
		case 1:
			cells, err := tableToCells(step.Argument)
			if err != nil {
				return nil, fmt.Errorf("%s: %s", step.Text, err)
			}
			for _, cell := range cells {
				set.contents[cell] = ""
			}
		case 2:
			set.contents[parts[1]] = ""
		default:
			return nil, fmt.Errorf("%s: expecting <cell> or cell table", step.Text)
		}
		if err := checkCells(set.contents); err != nil {
			return nil, fmt.Errorf("%s: %s", step.Text, err)
		}
		return set, nil
	case "assert":
		var assert cAssert
		switch len(parts) {
		case 1:
			pairs, err := tableToPairs(step.Argument)
			if err != nil {
				return nil, fmt.Errorf("%s: %s", step.Text, err)
			}
			assert.expected = make(map[string]formulas.Value)
			for cell, expected := range pairs {
				assert.expected[cell] = formulas.NewValue(expected)
			}
		case 2:
			return nil, fmt.Errorf("%s: missing value", step.Text)
		case 3:
			assert.expected = map[string]formulas.Value{
				parts[1]: formulas.NewValue(parts[2]),
			}
		}
		for cell := range assert.expected {
			if _, ok := formulas.ParseAddress(cell); !ok {
				return nil, fmt.Errorf("%s: malformed cell %s", step.Text, cell)
			}
		}
		return assert, nil
	case "evaluate":
		// the value is the last field, the formula may contain spaces
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(step.Text), parts[0]))
		split := strings.LastIndexByte(rest, ' ')
		if split < 0 {
			return nil, fmt.Errorf("%s: expecting evaluate <formula> <value>", step.Text)
		}
		formula, expected := strings.TrimSpace(rest[:split]), rest[split+1:]
		return cEvaluate{formula, formulas.NewValue(expected)}, nil
	default:
		if parts[0] == "" {
			return nil, fmt.Errorf("no verb: expecting verb %s", verbs)
		} else {
			return nil, fmt.Errorf("wrong verb '%s': expecting verb %s", parts[0], verbs)
		}
	}
}

func checkCells(contents map[string]string) error {
	for cell := range contents {
		if _, ok := formulas.ParseAddress(cell); !ok {
			return fmt.Errorf("malformed cell %s", cell)
		}
	}
	return nil
}

func (cmd cLoad) run(ctx *Context) error {
	if ctx.store.Len() != 0 {
		return fmt.Errorf("cannot load a sheet over existing cells")
	}
	store, err := formulas.LoadStoreFromFile(filepath.Join(ctx.CurrentDir, cmd.filename))
	if err != nil {
		return err
	}
	ctx.store = store
	return nil
}

func (cmd cSet) run(ctx *Context) error {
	for cell, content := range cmd.contents {
		if err := ctx.store.SetText(cell, content); err != nil {
			return err
		}
	}
	return nil
}

func (cmd cAssert) run(ctx *Context) error {
	var diffs []string
	snapshot := ctx.store.Snapshot()
	for cell, expected := range cmd.expected {
		actual := ctx.evaluator.ResolveCellForDisplay(formulas.MustParseAddress(cell), snapshot)
		if !sameDisplay(expected, actual) {
			diffs = append(diffs, fmt.Sprintf("%s: expected <%s>, was <%s>", cell, expected, actual))
		}
	}
	if len(diffs) != 0 {
		return fmt.Errorf("%s", strings.Join(diffs, "\n"))
	}
	return nil
}

func (cmd cEvaluate) run(ctx *Context) error {
	actual := ctx.evaluator.EvaluateFormula(cmd.formula, ctx.store.Snapshot())
	if !sameDisplay(cmd.expected, actual) {
		return fmt.Errorf("%s: expected <%s>, was <%s>", cmd.formula, cmd.expected, actual)
	}
	return nil
}

// sameDisplay compares values as a cell displays them: literal text reading
// `10` matches the number 10.
func sameDisplay(expected, actual formulas.Value) bool {
	if expected.Equal(actual) {
		return true
	}
	return expected.String() == actual.String() && !formulas.IsError(expected) && !formulas.IsError(actual)
}

// Context holds all that is necessary to run a scenario.
type Context struct {
	// CurrentDir is the current working directory when resolving relative path
	// names contained in the scenario.
	CurrentDir string

	// Options configures the evaluator used when asserting values.
	Options *formulas.Options

	store     *formulas.MemStore
	evaluator *formulas.Evaluator
}

// Scenario represents a single scenario from a .feature.
type Scenario struct {
	// Name is the scenario's name.
	Name string

	source   string
	steps    []*gherkin.Step
	commands []command
}

// Run runs the scenario using the provided context, over an empty sheet.
func (s Scenario) Run(ctx Context) error {
	ctx.store = formulas.NewMemStore()
	ctx.evaluator = formulas.NewEvaluator(ctx.Options)
	for i, cmd := range s.commands {
		if err := cmd.run(&ctx); err != nil {
			return niceErr(s.source, s.steps[i], err)
		}
	}
	return nil
}

func niceErr(source string, step *gherkin.Step, err error) error {
	return fmt.Errorf("%s:%d:%d: %s: %s",
		source, step.Location.Line, step.Location.Column,
		step.Text, err)
}

// ReadFeature reads a feature in gherkin syntax, and parses out all the
// scenarios contained herein.
func ReadFeature(reader io.Reader, source string) ([]Scenario, error) {
	doc, err := gherkin.ParseGherkinDocument(reader)
	if err != nil {
		return nil, err
	}

	scenarios, err := docToScenarios(doc, source)
	if err != nil {
		return nil, err
	}

	return scenarios, nil
}

// RunFeature runs a feature test.
func RunFeature(t *testing.T, filename string, opts ...Context) {
	file, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	scenarios, err := ReadFeature(bufio.NewReader(file), filename)
	if err != nil {
		t.Fatal(err)
	}

	// context
	var ctx Context
	switch len(opts) {
	case 0:
		ctx.CurrentDir = filepath.Dir(filename)
	case 1:
		ctx = opts[0]
	default:
		t.Fatalf("too many contexts provided")
	}

	// run scenarios
	for _, scenario := range scenarios {
		scenario := scenario
		t.Run(scenario.Name, func(t *testing.T) {
			err := scenario.Run(ctx)
			if err != nil {
				t.Error(err)
			}
		})
	}
}

func docToScenarios(doc *gherkin.GherkinDocument, source string) ([]Scenario, error) {
	if doc.Feature == nil {
		return nil, nil
	}

	var (
		bgSteps    []*gherkin.Step
		bgCommands []command
		scenarios  []Scenario
	)
	toCommands := func(steps []*gherkin.Step) ([]command, error) {
		var commands []command
		for _, step := range steps {
			cmd, err := stepToCommand(step)
			if err != nil {
				return nil, niceErr(source, step, err)
			}
			commands = append(commands, cmd)
		}
		return commands, nil
	}
	for _, child := range doc.Feature.Children {
		switch child := child.(type) {
		case *gherkin.Scenario:
			commands, err := toCommands(child.Steps)
			if err != nil {
				return nil, err
			}
			scenarios = append(scenarios, Scenario{
				Name:     child.Name,
				steps:    child.Steps,
				commands: commands,
			})
		case *gherkin.Background:
			commands, err := toCommands(child.Steps)
			if err != nil {
				return nil, err
			}
			bgSteps = child.Steps
			bgCommands = commands
		default:
			return nil, fmt.Errorf("%s: unknown child type %T", source, child)
		}
	}
	for i := range scenarios {
		scenarios[i].source = source
		scenarios[i].steps = append(append([]*gherkin.Step(nil), bgSteps...), scenarios[i].steps...)
		scenarios[i].commands = append(append([]command(nil), bgCommands...), scenarios[i].commands...)
	}
	return scenarios, nil
}

func tableToPairs(extra interface{}) (map[string]string, error) {
	table := mustGetDataTable(extra)
	if table == nil {
		return nil, fmt.Errorf("must provide a data table")
	}

	pairs := make(map[string]string)
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return nil, fmt.Errorf("must provide a table with two columns on every row")
		}
		pairs[row.Cells[0].Value] = row.Cells[1].Value
	}

	return pairs, nil
}

func tableToCells(extra interface{}) ([]string, error) {
	table := mustGetDataTable(extra)
	if table == nil {
		return nil, fmt.Errorf("must provide a cell table")
	}

	var cells []string
	for _, row := range table.Rows {
		if len(row.Cells) != 1 {
			return nil, fmt.Errorf("must provide a table with one column on every row")
		}
		cells = append(cells, row.Cells[0].Value)
	}

	return cells, nil
}

func mustGetDataTable(extra interface{}) *gherkin.DataTable {
	if table, ok := extra.(*gherkin.DataTable); !ok {
		return nil
	} else {
		return table
	}
}
