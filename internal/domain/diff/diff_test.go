package diff_test

import (
	"math/rand"
	"testing"

	"github.com/okian/groupwatch/internal/domain/diff"
	"github.com/okian/groupwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDiffSets(t *testing.T) {
	Convey("Given two rosters", t, func() {
		prev := model.NewRoster("Alice", "Bob")
		cur := model.NewRoster("Alice", "Carol")

		Convey("When diffing", func() {
			added, removed := diff.DiffSets(prev, cur)

			Convey("Then joins and departures are reported", func() {
				So(added, ShouldResemble, []string{"Carol"})
				So(removed, ShouldResemble, []string{"Bob"})
			})
		})

		Convey("When a member only changes case", func() {
			prev := model.NewRoster("Zezima", "alice")
			cur := model.NewRoster("zezima", "Alice")
			added, removed := diff.DiffSets(prev, cur)

			Convey("Then nothing is reported", func() {
				So(added, ShouldBeEmpty)
				So(removed, ShouldBeEmpty)
			})
		})

		Convey("When both sides are identical", func() {
			added, removed := diff.DiffSets(prev, prev)

			Convey("Then the diff is empty", func() {
				So(added, ShouldBeEmpty)
				So(removed, ShouldBeEmpty)
			})
		})

		Convey("When several members change", func() {
			prev := model.NewRoster("delta", "Bravo", "alpha")
			cur := model.NewRoster("Echo", "charlie", "foxtrot")
			added, removed := diff.DiffSets(prev, cur)

			Convey("Then output is sorted case-insensitively", func() {
				So(added, ShouldResemble, []string{"charlie", "Echo", "foxtrot"})
				So(removed, ShouldResemble, []string{"alpha", "Bravo", "delta"})
			})
		})
	})
}

func TestSetChanges(t *testing.T) {
	Convey("Given a roster change", t, func() {
		changes := diff.SetChanges(model.NewRoster("Alice", "Bob"), model.NewRoster("Alice", "Carol"))

		Convey("Then additions precede removals", func() {
			So(changes, ShouldResemble, []model.Change{
				{Kind: model.Added, Key: "Carol"},
				{Kind: model.Removed, Key: "Bob"},
			})
		})
	})
}

func TestDiffMetrics(t *testing.T) {
	Convey("Given previous and current skill levels", t, func() {
		prev := model.MetricSnapshot{"alice": {"attack": 70}}
		cur := model.MetricSnapshot{"alice": {"attack": 75, "strength": 40}}

		Convey("When filtering on attack", func() {
			changes := diff.DiffMetrics(prev, cur, diff.ParseFilter("attack"))

			Convey("Then exactly one increase is reported", func() {
				So(changes, ShouldResemble, []model.Change{
					{Kind: model.MetricIncreased, Key: "alice", Metric: "attack", Old: 70, New: 75},
				})
			})
		})

		Convey("When comparing all metrics", func() {
			changes := diff.DiffMetrics(prev, cur, diff.All())

			Convey("Then a metric missing from the baseline is not an increase from zero", func() {
				So(changes, ShouldHaveLength, 1)
				So(changes[0].Metric, ShouldEqual, "attack")
			})
		})

		Convey("When a level decreases", func() {
			cur := model.MetricSnapshot{"alice": {"attack": 60}}
			changes := diff.DiffMetrics(prev, cur, diff.All())

			Convey("Then nothing is reported", func() {
				So(changes, ShouldBeEmpty)
			})
		})

		Convey("When a player appears for the first time", func() {
			cur := model.MetricSnapshot{"bob": {"attack": 99}}
			changes := diff.DiffMetrics(prev, cur, diff.All())

			Convey("Then the player is only a baseline", func() {
				So(changes, ShouldBeEmpty)
			})
		})

		Convey("When several players and metrics increase", func() {
			prev := model.MetricSnapshot{
				"zed":   {"magic": 1, "attack": 1},
				"alice": {"strength": 10, "attack": 10},
			}
			cur := model.MetricSnapshot{
				"zed":   {"magic": 2, "attack": 2},
				"alice": {"strength": 11, "attack": 11},
			}
			changes := diff.DiffMetrics(prev, cur, diff.All())

			Convey("Then records are ordered by key then metric", func() {
				So(changes, ShouldHaveLength, 4)
				So([]string{changes[0].Key, changes[0].Metric}, ShouldResemble, []string{"alice", "attack"})
				So([]string{changes[1].Key, changes[1].Metric}, ShouldResemble, []string{"alice", "strength"})
				So([]string{changes[2].Key, changes[2].Metric}, ShouldResemble, []string{"zed", "attack"})
				So([]string{changes[3].Key, changes[3].Metric}, ShouldResemble, []string{"zed", "magic"})
			})
		})
	})
}

func TestDiffMetricsProperties(t *testing.T) {
	Convey("Given randomly generated snapshots", t, func() {
		rng := rand.New(rand.NewSource(42))
		metrics := []string{"attack", "strength", "defence", "magic", "ranged"}
		players := []string{"alice", "bob", "carol", "dave"}

		random := func() model.MetricSnapshot {
			s := model.MetricSnapshot{}
			for _, p := range players {
				if rng.Intn(4) == 0 {
					continue
				}
				lv := model.Levels{}
				for _, m := range metrics {
					if rng.Intn(5) == 0 {
						continue
					}
					lv[m] = 1 + rng.Intn(99)
				}
				s[p] = lv
			}
			return s
		}

		for i := 0; i < 200; i++ {
			prev, cur := random(), random()

			So(diff.DiffMetrics(prev, prev, diff.All()), ShouldBeEmpty)

			changes := diff.DiffMetrics(prev, cur, diff.All())
			seen := map[[2]string]int{}
			for _, c := range changes {
				So(c.New, ShouldBeGreaterThan, c.Old)
				seen[[2]string{c.Key, c.Metric}]++
			}
			for key, lv := range cur {
				for m, v := range lv {
					old, ok := prev[key][m]
					want := 0
					if ok && v > old {
						want = 1
					}
					So(seen[[2]string{key, m}], ShouldEqual, want)
				}
			}
		}
	})
}

func TestMerge(t *testing.T) {
	Convey("Given a stored snapshot and a partial fetch", t, func() {
		prev := model.MetricSnapshot{
			"alice": {"attack": 70, "prayer": 43},
			"bob":   {"attack": 50},
		}
		cur := model.MetricSnapshot{
			"alice": {"attack": 68, "strength": 40},
			"carol": {"attack": 1},
		}

		merged := diff.Merge(prev, cur)

		Convey("Then fetched values replace stored ones, including decreases", func() {
			So(merged["alice"], ShouldResemble, model.Levels{"attack": 68, "prayer": 43, "strength": 40})
		})

		Convey("Then players not fetched keep their record", func() {
			So(merged["bob"], ShouldResemble, model.Levels{"attack": 50})
		})

		Convey("Then new players are seeded", func() {
			So(merged["carol"], ShouldResemble, model.Levels{"attack": 1})
		})

		Convey("Then the inputs are not mutated", func() {
			So(prev["alice"]["attack"], ShouldEqual, 70)
			So(prev, ShouldNotContainKey, "carol")
		})
	})
}

func TestParseFilter(t *testing.T) {
	Convey("Given filter specifications", t, func() {
		for _, spec := range []string{"", "all", " ALL ", "everything", ",", " , ,"} {
			So(diff.ParseFilter(spec).IsAll(), ShouldBeTrue)
		}

		f := diff.ParseFilter("Attack, strength ,,")
		So(f.IsAll(), ShouldBeFalse)
		So(f.Allows("attack"), ShouldBeTrue)
		So(f.Allows("STRENGTH"), ShouldBeTrue)
		So(f.Allows("magic"), ShouldBeFalse)
		So(f.String(), ShouldEqual, "attack,strength")
		So(diff.All().String(), ShouldEqual, "all")
	})
}
