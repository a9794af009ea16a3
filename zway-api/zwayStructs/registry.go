package zwayStructs

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Ids returns the registry keys ordered by their value as a float, so "48.0"
// comes before "48.2" and "48.2" before "49.0". Keys with the same float value
// ("48.1" and "48.10") are ordered by their integer sequence.
func (r Registry) Ids() []string {
	ids := maps.Keys(r)
	slices.SortFunc(ids, lessId)
	return ids
}

func (r Registry) Copy() Registry {
	c := make(Registry, len(r))
	for id, rec := range r {
		c[id] = rec
	}
	return c
}

// Save writes the registry as a JSON object of id -> record.
func (r Registry) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}

func lessId(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return false
	case errB != nil:
		return true
	case fa != fb:
		return fa < fb
	}
	return sequence(a) < sequence(b)
}

func sequence(id string) int {
	_, seq, found := strings.Cut(id, ".")
	if !found {
		return 0
	}
	n, _ := strconv.Atoi(seq)
	return n
}

// BaseId returns the base device id part of a registry key.
func BaseId(id string) string {
	base, _, _ := strings.Cut(id, ".")
	return base
}
