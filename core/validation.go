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


package core

import (
	"fmt"
	"strings"
)

// ValidateQuery rejects empty and whitespace-only query text.
func ValidateQuery(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// ValidateOffense validates an OffenseRecord according to domain rules.
//
// Validation rules:
//   - Section must not be blank
//
// NOT validated:
//   - Offense, Description, Punishment (missing cells load as empty strings)
//   - Vector (empty until the corpus is embedded)
func ValidateOffense(record *OffenseRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidOffense)
	}
	if strings.TrimSpace(record.Section) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidOffense, ErrEmptySection)
	}
	return nil
}

// ValidateDimensions checks that every vector is non-empty and has the same
// length as want. A want of zero takes the first vector's length.
func ValidateDimensions(want int, vectors ...[]float32) (int, error) {
	for i, v := range vectors {
		if len(v) == 0 {
			return want, fmt.Errorf("%w: vector %d is empty", ErrDimensionMismatch, i)
		}
		if want == 0 {
			want = len(v)
			continue
		}
		if len(v) != want {
			return want, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), want)
		}
	}
	return want, nil
}
