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
	"bytes"
	"strings"

	"github.com/stretchr/testify/require"
)

func (s *Zuite) TestLoadStore() {
	store, err := LoadStore(strings.NewReader(`{
		"id": "ebb03a7f-8466-43fa-b2b8-2f0095304424",
		"cells": {"A1": "10", "A2": "=A1*2", "B1": ""}
	}`))
	require.NoError(s.T(), err)

	require.Equal(s.T(), "ebb03a7f-8466-43fa-b2b8-2f0095304424", store.Id())
	require.Equal(s.T(), 2, store.Len())
	require.Equal(s.T(), NewNumber(20), ResolveCellForDisplay(MustParseAddress("A2"), store))
}

func (s *Zuite) TestLoadStore_noId() {
	store, err := LoadStore(strings.NewReader(`{"cells": {"A1": "x"}}`))
	require.NoError(s.T(), err)
	require.Len(s.T(), store.Id(), 36)
}

func (s *Zuite) TestLoadStore_errors() {
	_, err := LoadStore(strings.NewReader(`{"cells": {"1A": "x"}}`))
	require.EqualError(s.T(), err, "malformed cell address 1A")

	_, err = LoadStore(strings.NewReader(`{"cells": [`))
	require.Error(s.T(), err)
	require.Contains(s.T(), err.Error(), "unable to read sheet")

	_, err = LoadStoreFromFile("features/does_not_exist.json")
	require.Error(s.T(), err)
}

func (s *Zuite) TestLoadStoreFromFile() {
	store, err := LoadStoreFromFile("features/sheet.json")
	require.NoError(s.T(), err)
	require.Equal(s.T(), NewNumber(30), ResolveCellForDisplay(MustParseAddress("A3"), store))
}

func (s *Zuite) TestWriteStore() {
	store := NewMemStoreWithId("some-id")
	store.Set(MustParseAddress("B1"), "=A1+1")
	store.Set(MustParseAddress("A1"), "1")

	var buf bytes.Buffer
	require.NoError(s.T(), WriteStore(&buf, store))
	require.Equal(s.T(), `{
  "id": "some-id",
  "cells": {
    "A1": "1",
    "B1": "=A1+1"
  }
}
`, buf.String())

	reloaded, err := LoadStore(&buf)
	require.NoError(s.T(), err)
	require.Equal(s.T(), store.Addresses(), reloaded.Addresses())
}
