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


// Package storage provides the storage abstraction layer for lexmap.
//
// The matcher itself is stateless; storage exists for two supporting
// concerns that outlive a single process:
//
//   - EmbeddingCache: corpus vectors keyed by (model, content ID), so the
//     expensive embedding inference runs once per corpus rather than once
//     per process start
//   - HistoryRepository: the caller-owned search history
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return concrete repository types
// that satisfy these interfaces. Consumers (corpus, session) accept the
// interfaces so tests can substitute in-memory implementations.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	cache := badger.NewEmbeddingCache(backend)
//	vectors, err := cache.GetVectors(ctx, "all-minilm", ids...)
//
// Use in tests with in-memory storage:
//
//	cache, history, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
