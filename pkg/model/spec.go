package model

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// ExperimentSpec is a single set of hyperparameters. Values may be scalars,
// lists, or nested maps. A spec is treated as immutable once created; all
// derived state is keyed by its canonical hash.
type ExperimentSpec map[string]any

// ID returns the deterministic experiment identifier for the spec: the md5
// hex digest of its canonical serialization. Two specs with identical content
// produce the same ID regardless of key order, including in nested maps.
func (s ExperimentSpec) ID() string {
	sum := md5.Sum(s.Canonical())
	return hex.EncodeToString(sum[:])
}

// Canonical returns the canonical serialization of the spec: JSON with
// map keys emitted in sorted order at every nesting level.
func (s ExperimentSpec) Canonical() []byte {
	b, err := json.Marshal(canonicalize(map[string]any(s)))
	if err != nil {
		// Specs come from YAML/JSON decoding, so every value is a plain
		// scalar, slice, or map and marshaling cannot fail.
		panic(fmt.Sprintf("canonicalize spec: %v", err))
	}
	return b
}

// Validate checks that the spec is usable as an experiment definition.
func (s ExperimentSpec) Validate() error {
	if len(s) == 0 {
		return NewValidationError("experiment spec is empty")
	}
	for k := range s {
		if k == "" {
			return NewValidationError("experiment spec has an empty parameter name")
		}
	}
	return nil
}

// Matches reports whether the given subset is contained in the spec,
// descending into nested maps. An empty subset matches everything.
func (s ExperimentSpec) Matches(subset map[string]any) bool {
	return isSubset(subset, map[string]any(s))
}

func isSubset(sub, full map[string]any) bool {
	for k, want := range sub {
		got, ok := full[k]
		if !ok {
			return false
		}
		wantMap, wantIsMap := asMap(want)
		gotMap, gotIsMap := asMap(got)
		switch {
		case wantIsMap && gotIsMap:
			if !isSubset(wantMap, gotMap) {
				return false
			}
		case wantIsMap != gotIsMap:
			return false
		default:
			// Compare through the canonical encoding so that 1 (int) and
			// 1.0 (float64) from different decoders are equal.
			if !canonicalEqual(want, got) {
				return false
			}
		}
	}
	return true
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func canonicalEqual(a, b any) bool {
	ab, errA := json.Marshal(canonicalizeValue(a))
	bb, errB := json.Marshal(canonicalizeValue(b))
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

// canonicalize returns a copy of m whose map values marshal with sorted keys.
// encoding/json already sorts map[string]any keys; the walk exists to also
// normalize nested containers that arrived as []any of maps.
func canonicalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = canonicalizeValue(m[k])
	}
	return out
}

func canonicalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return canonicalize(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return v
	}
}
