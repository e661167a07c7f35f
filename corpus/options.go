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
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/poiesic/lexmap/storage"
)

const (
	// DefaultBatchSize is the number of texts sent to the embedder per call.
	DefaultBatchSize = 64

	// DefaultProgressInterval is how many offenses pass between progress lines.
	DefaultProgressInterval = 100
)

// TextField selects which offense text is embedded.
type TextField int

const (
	// FieldDescription embeds the statutory description.
	FieldDescription TextField = iota
	// FieldOffense embeds the short offense title.
	FieldOffense
	// FieldCombined embeds the title followed by the description.
	FieldCombined
)

func (f TextField) String() string {
	switch f {
	case FieldDescription:
		return "description"
	case FieldOffense:
		return "offense"
	case FieldCombined:
		return "combined"
	default:
		return fmt.Sprintf("TextField(%d)", int(f))
	}
}

// ParseTextField maps a user-supplied name onto a TextField.
func ParseTextField(name string) (TextField, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "description":
		return FieldDescription, nil
	case "offense", "offence":
		return FieldOffense, nil
	case "combined", "both":
		return FieldCombined, nil
	default:
		return 0, fmt.Errorf("unknown text field %q", name)
	}
}

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger.With("component", "corpus")
		return nil
	}
}

// WithTextField selects the offense text to embed.
// Default is FieldDescription.
func WithTextField(field TextField) Option {
	return func(idx *Index) error {
		if field < FieldDescription || field > FieldCombined {
			return fmt.Errorf("invalid text field: %d", int(field))
		}
		idx.field = field
		return nil
	}
}

// WithBatchSize sets how many texts go to the embedder per call.
// Values below 1 fall back to DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(idx *Index) error {
		if size < 1 {
			size = DefaultBatchSize
		}
		idx.batchSize = size
		return nil
	}
}

// WithPoolSize sets the number of concurrent embedding workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(idx *Index) error {
		if size < 1 {
			size = 1
		}
		idx.poolSize = size
		return nil
	}
}

// WithCache stores offense vectors in cache keyed by model and text.
func WithCache(cache storage.EmbeddingCache) Option {
	return func(idx *Index) error {
		idx.cache = cache
		return nil
	}
}

// WithProgress writes progress lines to w every interval offenses.
func WithProgress(w io.Writer, interval int) Option {
	return func(idx *Index) error {
		if interval < 1 {
			interval = DefaultProgressInterval
		}
		idx.progress = w
		idx.progressInterval = interval
		return nil
	}
}

func defaultPoolSize() int {
	return max(runtime.NumCPU()/2, 1)
}
