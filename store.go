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
	"sort"
	"strings"
	"sync"

	"github.com/satori/go.uuid"
	"github.com/tiendc/go-deepcopy"
)

// CellContent is what a user typed in a cell: either a literal, or a formula
// when it starts with `=`.
type CellContent string

// FormulaPrefix marks formula contents.
const FormulaPrefix = "="

func (c CellContent) IsFormula() bool {
	return strings.HasPrefix(string(c), FormulaPrefix)
}

func (c CellContent) IsEmpty() bool {
	return c == ""
}

// Store is the lookup capability the engine needs from its host. Get must be
// side-effect free, and stable for the duration of one evaluation. A missing
// cell is equivalent to an empty literal.
type Store interface {
	Get(addr CellAddress) (CellContent, bool)
}

// StoreFunc adapts a plain function to the Store interface.
type StoreFunc func(addr CellAddress) (CellContent, bool)

func (fn StoreFunc) Get(addr CellAddress) (CellContent, bool) {
	return fn(addr)
}

// MemStore is a sparse, in-memory Store, safe for concurrent use. Hosts that
// edit cells while evaluating should evaluate against a Snapshot.
type MemStore struct {
	id    string
	mu    sync.RWMutex
	cells map[CellAddress]CellContent
}

// Assert MemStore implements the Store interface.
var _ Store = &MemStore{}

func NewMemStore() *MemStore {
	return NewMemStoreWithId(uuid.Must(uuid.NewV4()).String())
}

// NewMemStoreWithId returns an empty store for an existing sheet, such as one
// read back from persistent storage.
func NewMemStoreWithId(id string) *MemStore {
	return &MemStore{
		id:    id,
		cells: make(map[CellAddress]CellContent),
	}
}

// Id returns the identifier of this sheet.
func (s *MemStore) Id() string {
	return s.id
}

func (s *MemStore) Get(addr CellAddress) (CellContent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.cells[addr]
	return content, ok
}

// Set stores content at addr. Setting empty content removes the cell.
func (s *MemStore) Set(addr CellAddress, content CellContent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content.IsEmpty() {
		delete(s.cells, addr)
	} else {
		s.cells[addr] = content
	}
}

// SetText is Set with an A1-style address.
func (s *MemStore) SetText(ref string, content string) error {
	addr, ok := ParseAddress(ref)
	if !ok {
		return fmt.Errorf("malformed cell address %s", ref)
	}
	s.Set(addr, CellContent(content))
	return nil
}

func (s *MemStore) Clear(addr CellAddress) {
	s.Set(addr, "")
}

func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.cells)
}

// Addresses returns all populated addresses in row-major order.
func (s *MemStore) Addresses() []CellAddress {
	s.mu.RLock()
	addrs := make([]CellAddress, 0, len(s.cells))
	for addr := range s.cells {
		addrs = append(addrs, addr)
	}
	s.mu.RUnlock()

	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Row != addrs[j].Row {
			return addrs[i].Row < addrs[j].Row
		}
		return addrs[i].Col < addrs[j].Col
	})
	return addrs
}

// Snapshot returns a copy of the store, with the same id, which later edits
// of s do not affect.
func (s *MemStore) Snapshot() *MemStore {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cells map[CellAddress]CellContent
	if err := deepcopy.Copy(&cells, s.cells); err != nil {
		panic(fmt.Sprintf("unexpected %s", err))
	}
	if cells == nil {
		cells = make(map[CellAddress]CellContent)
	}
	return &MemStore{
		id:    s.id,
		cells: cells,
	}
}
