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

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/homelight/formulas"
	"github.com/homelight/formulas/fxtesting"
)

func main() {
	maxDepth := flag.Int("max-depth", formulas.DefaultMaxDepth, "longest reference chain before #ERROR!")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: fxtest [-max-depth n] filename...")
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	opts := &formulas.Options{
		MaxDepth: *maxDepth,
	}
	var encounteredFailure bool
	for i, filename := range flag.Args() {
		if 0 < i {
			fmt.Println()
		}

		if ok := runFeature(os.Stdout, filename, opts); !ok {
			encounteredFailure = true
		}
	}

	if encounteredFailure {
		os.Exit(1)
	}
	os.Exit(0)
}

func runFeature(out io.Writer, filename string, opts *formulas.Options) bool {
	// open doc
	file, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(out, "%s\n", filename)
		fmt.Fprintf(out, "FAIL\t%s\n", err)
		return false
	}
	defer file.Close()

	// read feature
	scenarios, err := fxtesting.ReadFeature(bufio.NewReader(file), filename)
	if err != nil {
		fmt.Fprintf(out, "%s\n", filename)
		fmt.Fprintf(out, "FAIL\t%s\n", err)
		return false
	}

	// run scenarios
	var (
		currentDir = filepath.Dir(filename)
		ok         = true
	)
	for _, s := range scenarios {
		err := s.Run(fxtesting.Context{
			CurrentDir: currentDir,
			Options:    opts,
		})
		if err != nil {
			fmt.Fprintf(out, "%s\n", s.Name)
			fmt.Fprintf(out, "FAIL\t%s\n", err)
			ok = false
		}
	}
	if ok {
		fmt.Fprintf(out, "ok\t%s\t%d scenarios\n", filename, len(scenarios))
	}
	return ok
}
