// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// constraint is a single comparator term, e.g. ">=1.0.0".
type constraint struct {
	op  string
	ver string // normalized, "v"-prefixed
}

// Spec is a parsed qop.toml `version` acceptance specification: a
// comma-separated list of constraints that must all hold, in the style of
// PEP 440 (">=1.0.0,<2.0.0") or a single caret/tilde shorthand
// ("^1.2.0", "~=1.2.0").
type Spec struct {
	raw         string
	constraints []constraint
}

// ParseSpec parses a qop.toml `version` field into a Spec.
func ParseSpec(raw string) (*Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("version spec must not be empty")
	}

	terms := strings.Split(raw, ",")
	s := &Spec{raw: raw}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		cs, err := parseTerm(term)
		if err != nil {
			return nil, fmt.Errorf("invalid version spec %q: %w", raw, err)
		}
		s.constraints = append(s.constraints, cs...)
	}
	if len(s.constraints) == 0 {
		return nil, fmt.Errorf("invalid version spec %q: no constraints", raw)
	}
	return s, nil
}

// parseTerm expands a single comma-delimited term into one or more
// primitive comparator constraints. Caret (^1.2.3 => >=1.2.3,<2.0.0) and
// tilde (~=1.2.3 => >=1.2.3,<1.3.0) are syntactic sugar over a pair of
// plain comparators.
func parseTerm(term string) ([]constraint, error) {
	switch {
	case strings.HasPrefix(term, "^"):
		base := normalize(term[1:])
		if !semver.IsValid(base) {
			return nil, fmt.Errorf("not a valid version: %q", term[1:])
		}
		upper := fmt.Sprintf("v%d.0.0", nextMajor(base))
		return []constraint{
			{op: ">=", ver: base},
			{op: "<", ver: upper},
		}, nil
	case strings.HasPrefix(term, "~="):
		base := normalize(term[2:])
		if !semver.IsValid(base) {
			return nil, fmt.Errorf("not a valid version: %q", term[2:])
		}
		upper := fmt.Sprintf("v%d.%d.0", majorOf(base), minorOf(base)+1)
		return []constraint{
			{op: ">=", ver: base},
			{op: "<", ver: upper},
		}, nil
	}

	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if strings.HasPrefix(term, op) {
			ver := normalize(strings.TrimSpace(term[len(op):]))
			if !semver.IsValid(ver) {
				return nil, fmt.Errorf("not a valid version: %q", term[len(op):])
			}
			return []constraint{{op: op, ver: ver}}, nil
		}
	}

	// A bare version is treated as an exact match.
	ver := normalize(term)
	if !semver.IsValid(ver) {
		return nil, fmt.Errorf("not a valid version: %q", term)
	}
	return []constraint{{op: "==", ver: ver}}, nil
}

// Satisfies reports whether candidate (e.g. "1.4.0") satisfies every
// constraint in the spec.
func (s *Spec) Satisfies(candidate string) bool {
	v := normalize(candidate)
	if !semver.IsValid(v) {
		return false
	}
	for _, c := range s.constraints {
		cmp := semver.Compare(v, c.ver)
		var ok bool
		switch c.op {
		case ">=":
			ok = cmp >= 0
		case "<=":
			ok = cmp <= 0
		case ">":
			ok = cmp > 0
		case "<":
			ok = cmp < 0
		case "==":
			ok = cmp == 0
		case "!=":
			ok = cmp != 0
		}
		if !ok {
			return false
		}
	}
	return true
}

// String returns the original, unparsed specification text.
func (s *Spec) String() string { return s.raw }

// CheckEngineCompatibility parses spec and checks it against the running
// engine's own version, returning a descriptive error naming both
// versions on mismatch.
func CheckEngineCompatibility(spec string) error {
	s, err := ParseSpec(spec)
	if err != nil {
		return err
	}
	engine := Get()
	if !s.Satisfies(engine) {
		return fmt.Errorf("qop.toml requires version %q, but this engine is version %q", s.String(), engine)
	}
	return nil
}

// normalize turns a bare "1.2.3" or "1.2" into the "vX.Y.Z" form
// golang.org/x/mod/semver requires.
func normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	parts := strings.Split(v, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return "v" + strings.Join(parts[:3], ".")
}

func majorOf(v string) int {
	var maj int
	fmt.Sscanf(strings.TrimPrefix(semver.Major(v), "v"), "%d", &maj)
	return maj
}

func minorOf(v string) int {
	mm := semver.MajorMinor(v) // "vX.Y"
	parts := strings.SplitN(strings.TrimPrefix(mm, "v"), ".", 2)
	if len(parts) < 2 {
		return 0
	}
	var min int
	fmt.Sscanf(parts[1], "%d", &min)
	return min
}

func nextMajor(v string) int {
	return majorOf(v) + 1
}
