package model

// ChangeKind enumerates change record variants.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Removed
	MetricIncreased
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case MetricIncreased:
		return "metric_increased"
	default:
		return "unknown"
	}
}

// Change is one record of a change-set. Metric, Old and New are only set for
// MetricIncreased.
type Change struct {
	Kind   ChangeKind
	Key    string
	Metric string
	Old    int
	New    int
}

// LeaderboardRow is one ranked entry of a gains leaderboard.
type LeaderboardRow struct {
	DisplayName string
	Gained      int64
}
