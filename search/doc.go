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


// Package search matches free-text incident descriptions against an embedded
// corpus of offense records and cross-references the best hit to its
// successor section.
//
// Matching is a single pass: the query is embedded once, scored against
// every offense by cosine similarity, and the ranking is sorted stably so
// ties keep corpus order. The top candidate is always returned; there is no
// similarity floor.
//
// Cross-referencing is a pure function of the matched section identifier.
// When no successor can be found the configured fallback reference is used
// instead of an error.
package search
