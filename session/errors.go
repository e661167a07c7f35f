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


// Package session tracks one user's search flow: waiting for a query, then
// showing a result until the user starts a new search. It also keeps the
// short "recent searches" list and optionally persists every completed search.
package session

import "errors"

var (
	// ErrMatcherRequired is returned when a session is created without a matcher.
	ErrMatcherRequired = errors.New("matcher required")

	// ErrIndexRequired is returned when a session is created without a corpus index.
	ErrIndexRequired = errors.New("corpus index required")
)
