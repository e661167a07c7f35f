// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package corpus

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/lexmap/core"
)

const (
	offenseTable   = "offenses"
	successorTable = "successors"
)

// column describes one logical column and the header spellings accepted for it.
type column struct {
	name     string
	aliases  []string
	required bool
}

var offenseColumns = []column{
	{name: "Section", aliases: []string{"section", "section no", "section no.", "section number", "ipc section", "ipc"}, required: true},
	{name: "Offense", aliases: []string{"offense", "offence", "offense name", "offence name", "crime"}, required: true},
	{name: "Description", aliases: []string{"description", "desc", "details"}, required: true},
	{name: "Punishment", aliases: []string{"punishment", "penalty", "sentence"}, required: true},
}

var successorColumns = []column{
	{name: "Section", aliases: []string{"section", "section no", "section no.", "section number", "bns section", "bns"}, required: true},
	{name: "Description", aliases: []string{"description", "desc", "details"}, required: true},
	{name: "LegacySection", aliases: []string{"ipc section", "old section", "legacy section", "replaces"}},
}

// Load reads CSV offense and successor tables and builds an Index.
// Both tables must start with a header row.
func Load(offenses, successors io.Reader, opts ...Option) (*Index, error) {
	return load(offenses, ',', successors, ',', opts...)
}

// LoadFiles reads the offense and successor tables from disk. Files ending
// in .tsv are read tab-separated, everything else as CSV.
func LoadFiles(offensePath, successorPath string, opts ...Option) (*Index, error) {
	offenses, err := os.Open(offensePath)
	if err != nil {
		return nil, &core.DataLoadError{Table: offenseTable, Err: err}
	}
	defer offenses.Close()

	successors, err := os.Open(successorPath)
	if err != nil {
		return nil, &core.DataLoadError{Table: successorTable, Err: err}
	}
	defer successors.Close()

	return load(offenses, delimiterFor(offensePath), successors, delimiterFor(successorPath), opts...)
}

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

func load(offenses io.Reader, offenseComma rune, successors io.Reader, successorComma rune, opts ...Option) (*Index, error) {
	offenseRows, err := readTable(offenses, offenseComma, offenseTable, offenseColumns)
	if err != nil {
		return nil, err
	}
	successorRows, err := readTable(successors, successorComma, successorTable, successorColumns)
	if err != nil {
		return nil, err
	}

	records := make([]*core.OffenseRecord, len(offenseRows))
	for i, row := range offenseRows {
		records[i] = &core.OffenseRecord{
			Section:     row[0],
			Offense:     row[1],
			Description: row[2],
			Punishment:  row[3],
		}
	}
	succ := make([]*core.SuccessorRecord, len(successorRows))
	for i, row := range successorRows {
		succ[i] = &core.SuccessorRecord{
			Section:       row[0],
			Description:   row[1],
			LegacySection: row[2],
		}
	}
	return New(records, succ, opts...)
}

// readTable returns one slice per data row holding the cells of cols in order.
// Missing cells are returned as empty strings.
func readTable(r io.Reader, comma rune, table string, cols []column) ([][]string, error) {
	if r == nil {
		return nil, &core.DataLoadError{Table: table, Err: errors.New("no input")}
	}
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &core.DataLoadError{Table: table, Err: err}
	}
	if len(rows) == 0 {
		return nil, &core.DataLoadError{Table: table, Err: errors.New("missing header row")}
	}

	positions, err := resolveColumns(rows[0], table, cols)
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		values := make([]string, len(cols))
		for i, pos := range positions {
			if pos >= 0 && pos < len(row) {
				values[i] = NormalizeText(row[pos])
			}
		}
		out = append(out, values)
	}
	return out, nil
}

// resolveColumns maps each logical column to a header position, or -1 when
// an optional column is absent.
func resolveColumns(header []string, table string, cols []column) ([]int, error) {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = normalizeHeader(cell)
	}

	claimed := make([]bool, len(header))
	positions := make([]int, len(cols))
	for i, col := range cols {
		positions[i] = -1
		for pos, name := range normalized {
			if !claimed[pos] && slices.Contains(col.aliases, name) {
				positions[i] = pos
				claimed[pos] = true
				break
			}
		}
		if positions[i] < 0 && col.required {
			return nil, &core.DataLoadError{Table: table, Field: col.name}
		}
	}
	return positions, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if NormalizeText(cell) != "" {
			return false
		}
	}
	return true
}

