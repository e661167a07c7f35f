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


// Package corpus loads the offense and successor reference tables and holds
// the embedded offense vectors the matcher ranks against.
//
// An Index is built once by Load or LoadFiles, then embedded once by
// EmbedAll. After EmbedAll returns the Index is read-only and may be shared
// between goroutines without further locking. An Index is embedded with one
// model for its whole life; switching models means loading a new Index.
//
// Example:
//
//	idx, err := corpus.LoadFiles("ipc_sections.csv", "bns_sections.csv")
//	if err != nil {
//	    return err
//	}
//	if err := idx.EmbedAll(ctx, provider.Embedder()); err != nil {
//	    return err
//	}
package corpus
