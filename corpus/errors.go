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

import "errors"

var (
	// ErrNotEmbedded indicates the index has not been embedded yet.
	ErrNotEmbedded = errors.New("corpus has not been embedded")

	// ErrEmbedderRequired indicates EmbedAll was called without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrAlreadyEmbedded indicates EmbedAll was asked to replace vectors
	// produced by a different model.
	ErrAlreadyEmbedded = errors.New("corpus already embedded with another model")
)
