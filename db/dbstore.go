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

package db

import (
	"fmt"
	"math"

	"github.com/homelight/dat/sqlx-runner"
	log "github.com/mgutz/logxi/v1"

	"github.com/homelight/formulas"
)

var logger = log.New("formulas/db")

// DbStore persists sheets in Postgres. Every save of a sheet creates a new
// version, and older versions remain readable.
type DbStore struct {
	evaluator *formulas.Evaluator
}

func NewStore(opts *formulas.Options) *DbStore {
	return &DbStore{
		evaluator: formulas.NewEvaluator(opts),
	}
}

// Open starts a session over tx. Sheets loaded within one session are read at
// a single version, and stay consistent for the duration of an evaluation.
func (s *DbStore) Open(tx *runner.Tx) *Session {
	return &Session{
		DbStore: s,
		tx:      tx,
	}
}

// Session reads and writes sheets within a transaction.
type Session struct {
	*DbStore
	tx *runner.Tx
}

// Sheet is a sheet tracked by a session: its cells, and the version they were
// read at.
type Sheet struct {
	*formulas.MemStore

	version int
	orig    map[formulas.CellAddress]formulas.CellContent
}

// NewSheet creates an empty sheet, not yet saved.
func NewSheet() *Sheet {
	return &Sheet{
		MemStore: formulas.NewMemStore(),
		orig:     make(map[formulas.CellAddress]formulas.CellContent),
	}
}

// Version is the version this sheet was last loaded or saved at, 0 when it
// was never saved.
func (sheet *Sheet) Version() int {
	return sheet.version
}

// rSheet represents a record of the sheets table.
type rSheet struct {
	Id      string `db:"id"`
	Version int    `db:"version"`
}

// rCell represents a record of the sheet_cells table.
type rCell struct {
	Id          int64  `db:"id"`
	SheetId     string `db:"sheet_id"`
	Address     string `db:"address"`
	FromVersion int    `db:"from_version"`
	ToVersion   int    `db:"to_version"`
	Content     string `db:"content"`
}

// Load loads the head version of the sheet with identifier id.
func (s *Session) Load(id string) (*Sheet, error) {
	var sheetRecs []rSheet
	if err := s.tx.
		Select("*").
		From("sheets").
		Where("id = $1", id).
		QueryStructs(&sheetRecs); err != nil {
		return nil, fmt.Errorf("unable to load sheets records: %w", err)
	} else if len(sheetRecs) == 0 {
		return nil, fmt.Errorf("unknown sheet with id %s", id)
	}
	return s.loadAtVersion(id, sheetRecs[0].Version)
}

// LoadAtVersion loads the sheet with identifier id as it was at version.
func (s *Session) LoadAtVersion(id string, version int) (*Sheet, error) {
	var count int
	if err := s.tx.
		Select("count(*)").
		From("sheets").
		Where("id = $1 and 0 < $2 and $2 <= version", id, version).
		QueryScalar(&count); err != nil {
		return nil, err
	} else if count == 0 {
		return nil, fmt.Errorf("unknown sheet with id %s at version %d", id, version)
	}
	return s.loadAtVersion(id, version)
}

func (s *Session) loadAtVersion(id string, version int) (*Sheet, error) {
	var cellRecs []rCell
	if err := s.tx.
		Select("*").
		From("sheet_cells").
		Where("sheet_id = $1", id).
		Where("from_version <= $1 and $1 <= to_version", version).
		QueryStructs(&cellRecs); err != nil {
		return nil, fmt.Errorf("unable to load cells records: %w", err)
	}

	sheet := &Sheet{
		MemStore: formulas.NewMemStoreWithId(id),
		version:  version,
		orig:     make(map[formulas.CellAddress]formulas.CellContent),
	}
	for _, cellRec := range cellRecs {
		addr, ok := formulas.ParseAddress(cellRec.Address)
		if !ok {
			return nil, fmt.Errorf("unreadable address %s in sheet %s", cellRec.Address, id)
		}
		content := formulas.CellContent(cellRec.Content)
		sheet.Set(addr, content)
		sheet.orig[addr] = content
	}

	logger.Debug("loaded sheet", "id", id, "version", version, "cells", len(cellRecs))
	return sheet, nil
}

// SaveOrUpdate saves sheet if it was never saved, and updates it otherwise.
func (s *Session) SaveOrUpdate(sheet *Sheet) error {
	if sheet.version == 0 {
		return s.Save(sheet)
	}
	return s.Update(sheet)
}

// Save saves a new sheet, at version 1.
func (s *Session) Save(sheet *Sheet) error {
	if sheet.version != 0 {
		return fmt.Errorf("sheet %s already saved at version %d", sheet.Id(), sheet.version)
	}

	if _, err := s.tx.
		InsertInto("sheets").
		Columns("*").
		Record(&rSheet{
			Id:      sheet.Id(),
			Version: 1,
		}).
		Exec(); err != nil {
		return err
	}

	cells := sheet.Snapshot()
	if err := s.insertCells(sheet.Id(), 1, cells, cells.Addresses()); err != nil {
		return err
	}

	sheet.version = 1
	sheet.orig = contentsOf(cells)
	logger.Debug("saved sheet", "id", sheet.Id(), "cells", cells.Len())
	return nil
}

// Update stores the edits made to sheet since it was loaded or saved, as a
// new version. Concurrent updates of the same version are detected, and the
// loser is rejected.
func (s *Session) Update(sheet *Sheet) error {
	oldVersion := sheet.version
	newVersion := oldVersion + 1

	cells := sheet.Snapshot()
	current := contentsOf(cells)

	var changed []formulas.CellAddress
	for addr, content := range sheet.orig {
		if now, ok := current[addr]; !ok || now != content {
			changed = append(changed, addr)
		}
	}
	var inserted []formulas.CellAddress
	for _, addr := range cells.Addresses() {
		if content, ok := sheet.orig[addr]; !ok || content != current[addr] {
			inserted = append(inserted, addr)
		}
	}
	if len(changed) == 0 && len(inserted) == 0 {
		return nil
	}

	// bump the version, and fail on a concurrent modification
	result, err := s.tx.
		Update("sheets").
		Set("version", newVersion).
		Where("id = $1 and version = $2", sheet.Id(), oldVersion).
		Exec()
	if err != nil {
		return err
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("concurrent update on sheet %s detected", sheet.Id())
	}

	// close the previous records of changed and removed cells
	for _, addr := range changed {
		if _, err := s.tx.
			Update("sheet_cells").
			Set("to_version", oldVersion).
			Where("sheet_id = $1", sheet.Id()).
			Where("address = $1", addr.String()).
			Where("from_version <= $1 and $1 <= to_version", oldVersion).
			Exec(); err != nil {
			return err
		}
	}

	if err := s.insertCells(sheet.Id(), newVersion, cells, inserted); err != nil {
		return err
	}

	sheet.version = newVersion
	sheet.orig = current
	logger.Debug("updated sheet", "id", sheet.Id(), "version", newVersion, "edits", len(inserted))
	return nil
}

func (s *Session) insertCells(id string, version int, cells *formulas.MemStore, addrs []formulas.CellAddress) error {
	if len(addrs) == 0 {
		return nil
	}
	insert := s.tx.InsertInto("sheet_cells").Columns("*").Blacklist("id")
	for _, addr := range addrs {
		content, _ := cells.Get(addr)
		insert.Record(rCell{
			SheetId:     id,
			Address:     addr.String(),
			FromVersion: version,
			ToVersion:   math.MaxInt32,
			Content:     string(content),
		})
	}
	_, err := insert.Exec()
	return err
}

// Evaluate loads the head version of a sheet, and computes what the cell at
// ref displays.
func (s *Session) Evaluate(id, ref string) (formulas.Value, error) {
	addr, ok := formulas.ParseAddress(ref)
	if !ok {
		return nil, fmt.Errorf("malformed cell address %s", ref)
	}
	sheet, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	return s.evaluator.ResolveCellForDisplay(addr, sheet), nil
}

func contentsOf(cells *formulas.MemStore) map[formulas.CellAddress]formulas.CellContent {
	contents := make(map[formulas.CellAddress]formulas.CellContent)
	for _, addr := range cells.Addresses() {
		content, _ := cells.Get(addr)
		contents[addr] = content
	}
	return contents
}
