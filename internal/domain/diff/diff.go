// Package diff computes change-sets between two snapshots.
package diff

import (
	"sort"

	"github.com/okian/groupwatch/internal/domain/model"
)

// DiffSets returns the members that joined and left between prev and cur,
// compared case-insensitively and sorted for presentation. Added names use
// the current display form, removed names the previous one.
func DiffSets(prev, cur model.Roster) (added, removed []string) {
	added = []string{}
	removed = []string{}
	for k, name := range cur {
		if _, ok := prev[k]; !ok {
			added = append(added, name)
		}
	}
	for k, name := range prev {
		if _, ok := cur[k]; !ok {
			removed = append(removed, name)
		}
	}
	model.SortFold(added)
	model.SortFold(removed)
	return added, removed
}

// SetChanges turns DiffSets output into change records, additions first.
func SetChanges(prev, cur model.Roster) []model.Change {
	added, removed := DiffSets(prev, cur)
	out := make([]model.Change, 0, len(added)+len(removed))
	for _, n := range added {
		out = append(out, model.Change{Kind: model.Added, Key: n})
	}
	for _, n := range removed {
		out = append(out, model.Change{Kind: model.Removed, Key: n})
	}
	return out
}

// DiffMetrics reports every metric that increased for keys present in both
// snapshots. Keys seen for the first time, metrics missing from prev and
// metrics rejected by filter produce nothing; decreases are never reported.
// Records are ordered by key, then metric name.
func DiffMetrics(prev, cur model.MetricSnapshot, filter Filter) []model.Change {
	var out []model.Change
	for _, key := range cur.Keys() {
		before, ok := prev[key]
		if !ok {
			continue
		}
		after := cur[key]
		metrics := make([]string, 0, len(after))
		for m := range after {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
		for _, m := range metrics {
			if !filter.Allows(m) {
				continue
			}
			old, ok := before[m]
			if !ok {
				continue
			}
			if v := after[m]; v > old {
				out = append(out, model.Change{Kind: model.MetricIncreased, Key: key, Metric: m, Old: old, New: v})
			}
		}
	}
	return out
}

// Merge builds the snapshot to persist after a run. Keys not fetched this
// run keep their previous record; fetched keys take the fetched values, so a
// decrease becomes the new baseline. Metrics absent from the fetch keep their
// previous value.
func Merge(prev, cur model.MetricSnapshot) model.MetricSnapshot {
	out := prev.Clone()
	for key, levels := range cur {
		merged, ok := out[key]
		if !ok {
			merged = make(model.Levels, len(levels))
		}
		for m, v := range levels {
			merged[m] = v
		}
		out[key] = merged
	}
	return out
}
