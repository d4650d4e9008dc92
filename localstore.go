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
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// sheetFile is the on-disk form of a MemStore, e.g.
//
//	{"id": "...", "cells": {"A1": "10", "A2": "=A1*2"}}
type sheetFile struct {
	Id    string            `json:"id"`
	Cells map[string]string `json:"cells"`
}

// LoadStore reads a sheet in its JSON form.
func LoadStore(r io.Reader) (*MemStore, error) {
	var file sheetFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("unable to read sheet: %w", err)
	}

	var s *MemStore
	if file.Id == "" {
		s = NewMemStore()
	} else {
		s = NewMemStoreWithId(file.Id)
	}
	for ref, content := range file.Cells {
		if err := s.SetText(ref, content); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadStoreFromFile reads a sheet from the named JSON file.
func LoadStoreFromFile(filename string) (*MemStore, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadStore(f)
}

// WriteStore writes the sheet in its JSON form.
func WriteStore(w io.Writer, s *MemStore) error {
	file := sheetFile{
		Id:    s.Id(),
		Cells: make(map[string]string),
	}
	for _, addr := range s.Addresses() {
		content, _ := s.Get(addr)
		file.Cells[addr.String()] = string(content)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&file)
}
