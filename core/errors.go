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
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrDataLoad indicates a reference table could not be read or is malformed.
	ErrDataLoad = errors.New("data load failed")

	// ErrEmptyQuery indicates the query text is empty or whitespace only.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmptyCorpus indicates the corpus index holds no offense records.
	ErrEmptyCorpus = errors.New("corpus has no offense records")

	// ErrEmbedding indicates the embedding collaborator failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch indicates vectors from different embedding spaces were mixed.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidOffense indicates an OffenseRecord failed validation.
	ErrInvalidOffense = errors.New("invalid offense record")

	// ErrEmptySection indicates a record has no section identifier.
	ErrEmptySection = errors.New("section cannot be empty")
)

// DataLoadError reports which table and which field made a load fail.
type DataLoadError struct {
	Table string
	Field string
	Err   error
}

func (e *DataLoadError) Error() string {
	msg := "load " + e.Table
	if e.Field != "" {
		msg += fmt.Sprintf(": column %q", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is(err, ErrDataLoad) match any DataLoadError.
func (e *DataLoadError) Is(target error) bool {
	return target == ErrDataLoad
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// EmbeddingError wraps a failure from the embedding collaborator. The
// collaborator's error is preserved verbatim and reachable through errors.Unwrap.
type EmbeddingError struct {
	// Op names the step that failed, e.g. "embed corpus" or "embed query".
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + ErrEmbedding.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

// Is lets errors.Is(err, ErrEmbedding) match any EmbeddingError.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
