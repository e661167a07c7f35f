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


package search

import (
	"strings"

	"github.com/poiesic/lexmap/core"
)

const (
	// DefaultSuccessorPrefix is prepended to bare numeric successor sections.
	DefaultSuccessorPrefix = "BNS "

	// DefaultFallbackRef is returned when no successor can be found.
	DefaultFallbackRef = "BNS 303 (General)"
)

// Resolver maps an offense section identifier onto a successor section.
type Resolver struct {
	successors []*core.SuccessorRecord
	prefix     string
	fallback   string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// FallbackRef sets the reference returned when no successor matches.
func FallbackRef(ref string) ResolverOption {
	return func(r *Resolver) {
		r.fallback = ref
	}
}

// SuccessorPrefix sets the prefix for bare numeric successor sections.
func SuccessorPrefix(prefix string) ResolverOption {
	return func(r *Resolver) {
		r.prefix = prefix
	}
}

// NewResolver creates a resolver over successors. Without options it uses
// DefaultSuccessorPrefix and DefaultFallbackRef.
func NewResolver(successors []*core.SuccessorRecord, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		successors: successors,
		prefix:     DefaultSuccessorPrefix,
		fallback:   DefaultFallbackRef,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up the successor for section. It first looks for a successor
// whose legacy section carries the same number, then for the first successor
// whose own section contains that number. When neither exists the fallback
// reference is returned with fallback set.
func (r *Resolver) Resolve(section string) (successor *core.SuccessorRecord, ref string, fallback bool) {
	digits := SectionDigits(section)
	if digits == "" {
		return nil, r.fallback, true
	}

	for _, candidate := range r.successors {
		if candidate.LegacySection != "" && SectionDigits(candidate.LegacySection) == digits {
			return candidate, r.Label(candidate), false
		}
	}
	for _, candidate := range r.successors {
		if strings.Contains(candidate.Section, digits) {
			return candidate, r.Label(candidate), false
		}
	}
	return nil, r.fallback, true
}

// Label renders the display reference for a successor, e.g. "BNS 103".
// Sections that already start with a non-digit are returned unchanged.
func (r *Resolver) Label(successor *core.SuccessorRecord) string {
	if successor == nil {
		return r.fallback
	}
	section := strings.TrimSpace(successor.Section)
	if section == "" {
		return r.fallback
	}
	if !isDigit(section[0]) {
		return section
	}
	return r.prefix + section
}

// Fallback returns the reference used when no successor matches.
func (r *Resolver) Fallback() string {
	return r.fallback
}

// SectionDigits returns the first maximal run of ASCII digits in section,
// so "498A" yields "498" and "Sec. 302" yields "302".
func SectionDigits(section string) string {
	start := -1
	for i := 0; i < len(section); i++ {
		if isDigit(section[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return section[start:i]
		}
	}
	if start < 0 {
		return ""
	}
	return section[start:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
