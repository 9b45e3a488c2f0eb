package diff

import (
	"sort"
	"strings"
)

// Filter restricts which metrics are compared. The zero value allows all.
type Filter struct {
	allowed map[string]struct{}
}

// All returns a filter that allows every metric.
func All() Filter { return Filter{} }

// ParseFilter parses an "all" sentinel or a comma separated list of metric
// names. Empty, malformed or name-less specifications allow everything.
func ParseFilter(spec string) Filter {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "", "all", "everything":
		return All()
	}
	allowed := make(map[string]struct{})
	for _, part := range strings.Split(spec, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if name == "all" || name == "everything" {
			return All()
		}
		allowed[name] = struct{}{}
	}
	if len(allowed) == 0 {
		return All()
	}
	return Filter{allowed: allowed}
}

// IsAll reports whether the filter allows every metric.
func (f Filter) IsAll() bool { return len(f.allowed) == 0 }

// Allows reports whether metric passes the filter, ignoring case.
func (f Filter) Allows(metric string) bool {
	if f.IsAll() {
		return true
	}
	_, ok := f.allowed[strings.ToLower(metric)]
	return ok
}

// String renders the filter back into its specification form.
func (f Filter) String() string {
	if f.IsAll() {
		return "all"
	}
	names := make([]string, 0, len(f.allowed))
	for n := range f.allowed {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
