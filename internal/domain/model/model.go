// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"strings"
)

// FoldKey returns the comparison form of an entity key.
func FoldKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Roster is a set snapshot of group members: folded key -> display name.
type Roster map[string]string

// NewRoster builds a roster from display names. Blank names are dropped and
// the first display form of a duplicated key wins.
func NewRoster(names ...string) Roster {
	r := make(Roster, len(names))
	for _, n := range names {
		r.Add(n)
	}
	return r
}

// Add records name unless its folded key is already present.
// It reports whether the roster changed.
func (r Roster) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	k := FoldKey(name)
	if _, ok := r[k]; ok {
		return false
	}
	r[k] = name
	return true
}

// Has reports whether key is a member, ignoring case.
func (r Roster) Has(key string) bool {
	_, ok := r[FoldKey(key)]
	return ok
}

// Names returns display names sorted case-insensitively.
func (r Roster) Names() []string {
	out := make([]string, 0, len(r))
	for _, n := range r {
		out = append(out, n)
	}
	SortFold(out)
	return out
}

// Len returns the member count.
func (r Roster) Len() int { return len(r) }

// SortFold sorts names case-insensitively, breaking ties on the raw string so
// the order is total.
func SortFold(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
}

// Levels maps a metric name (e.g. "attack") to its integer value.
type Levels map[string]int

// Clone returns a copy of l.
func (l Levels) Clone() Levels {
	out := make(Levels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// MetricSnapshot is a valued snapshot: folded key -> metric levels.
type MetricSnapshot map[string]Levels

// Keys returns the folded keys in sorted order.
func (s MetricSnapshot) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone deep-copies the snapshot.
func (s MetricSnapshot) Clone() MetricSnapshot {
	out := make(MetricSnapshot, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}
