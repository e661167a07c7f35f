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


// Package complaint renders plain-text artifacts from a match result: the
// complaint draft a user can paste into a police report, and the quick
// summary table shown next to a result.
package complaint

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/poiesic/lexmap/core"
)

// ErrNoResult is returned when there is no matched offense to render.
var ErrNoResult = errors.New("no match result to render")

// Row is one line of the summary table.
type Row struct {
	Category string `json:"category"`
	Details  string `json:"details"`
}

// Draft renders the complaint text for result. details is the incident
// description; when blank the query that produced result is used.
func Draft(result *core.MatchResult, details string) (string, error) {
	if result == nil || result.Offense == nil {
		return "", ErrNoResult
	}
	if strings.TrimSpace(details) == "" {
		details = result.Query
	}
	return fmt.Sprintf("OFFENSE: %s\nSECTIONS: IPC %s / %s\nDETAILS: %s",
		result.Offense.Offense,
		result.Offense.Section,
		result.SuccessorRef,
		strings.TrimSpace(details)), nil
}

// Summary returns the four summary rows for result: offense name, old
// section, successor section and punishment.
func Summary(result *core.MatchResult) ([]Row, error) {
	if result == nil || result.Offense == nil {
		return nil, ErrNoResult
	}
	return []Row{
		{Category: "Offense Name", Details: result.Offense.Offense},
		{Category: "IPC Section", Details: "Section " + result.Offense.Section},
		{Category: "BNS Section", Details: result.SuccessorRef},
		{Category: "Punishment", Details: result.Offense.Punishment},
	}, nil
}

// FormatSummary lays rows out as an aligned two-column table.
func FormatSummary(rows []Row) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Category\tDetails")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\n", row.Category, row.Details)
	}
	w.Flush()
	return sb.String()
}
