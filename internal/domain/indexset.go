package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// IndexSet is a set of 0-based option indices. Its persisted form is the
// comma-separated list of indices in ascending order, e.g. "0,2".
type IndexSet struct {
	indices []int
}

// NewIndexSet deduplicates and sorts the given indices.
func NewIndexSet(indices ...int) IndexSet {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return IndexSet{indices: out}
}

// ParseIndexSet decodes the persisted form. The empty string is the empty set;
// any token that is not a non-negative integer is an error.
func ParseIndexSet(raw string) (IndexSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return IndexSet{}, nil
	}
	parts := strings.Split(raw, ",")
	indices := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return IndexSet{}, fmt.Errorf("%w: %q", ErrMalformedIndexList, raw)
		}
		indices = append(indices, n)
	}
	return NewIndexSet(indices...), nil
}

// String encodes the set in its persisted form.
func (s IndexSet) String() string {
	parts := make([]string, len(s.indices))
	for i, n := range s.indices {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// Indices returns the members in ascending order.
func (s IndexSet) Indices() []int {
	out := make([]int, len(s.indices))
	copy(out, s.indices)
	return out
}

func (s IndexSet) Len() int { return len(s.indices) }

func (s IndexSet) Empty() bool { return len(s.indices) == 0 }

func (s IndexSet) Contains(i int) bool {
	n := sort.SearchInts(s.indices, i)
	return n < len(s.indices) && s.indices[n] == i
}

// Max returns the largest member, or 0 for the empty set.
func (s IndexSet) Max() int {
	if len(s.indices) == 0 {
		return 0
	}
	return s.indices[len(s.indices)-1]
}

func (s IndexSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *IndexSet) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseIndexSet(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
