package format_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/okian/groupwatch/internal/domain/format"
	"github.com/okian/groupwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFormatAmount(t *testing.T) {
	Convey("Given amounts on both sides of the suffix thresholds", t, func() {
		So(format.FormatAmount(0), ShouldEqual, "0")
		So(format.FormatAmount(999), ShouldEqual, "999")
		So(format.FormatAmount(1_000), ShouldEqual, "1.00K")
		So(format.FormatAmount(123_456), ShouldEqual, "123.46K")
		So(format.FormatAmount(999_999), ShouldEqual, "1000.00K")
		So(format.FormatAmount(1_000_000), ShouldEqual, "1.00M")
		So(format.FormatAmount(12_345_678), ShouldEqual, "12.35M")
	})
}

func TestBatch(t *testing.T) {
	Convey("Given a formatter with the default limits", t, func() {
		f := format.New()

		Convey("When batching 23 lines", func() {
			lines := make([]string, 23)
			for i := range lines {
				lines[i] = fmt.Sprintf("line %d", i)
			}
			msgs := f.Batch(lines)

			Convey("Then messages hold at most 10 lines and keep every line intact", func() {
				So(msgs, ShouldHaveLength, 3)
				So(strings.Split(msgs[0], "\n"), ShouldHaveLength, 10)
				So(strings.Split(msgs[2], "\n"), ShouldHaveLength, 3)
				var rejoined []string
				for _, m := range msgs {
					rejoined = append(rejoined, strings.Split(m, "\n")...)
				}
				So(rejoined, ShouldResemble, lines)
			})
		})

		Convey("When there is nothing to send", func() {
			So(f.Batch(nil), ShouldBeEmpty)
		})
	})

	Convey("Given a formatter with a small character budget", t, func() {
		f := format.New(format.WithMaxLines(100), format.WithMaxChars(20))

		Convey("When lines would overflow a message", func() {
			msgs := f.Batch([]string{"aaaaaaaaa", "bbbbbbbbb", "ccccccccc"})

			Convey("Then a new message is started instead of splitting a line", func() {
				So(msgs, ShouldResemble, []string{"aaaaaaaaa\nbbbbbbbbb", "ccccccccc"})
			})
		})

		Convey("When a single line is too long", func() {
			msgs := f.Batch([]string{strings.Repeat("é", 50)})

			Convey("Then it is truncated with an ellipsis", func() {
				So(msgs, ShouldHaveLength, 1)
				So(utf8.RuneCountInString(msgs[0]), ShouldEqual, 20)
				So(msgs[0], ShouldEndWith, "…")
			})
		})
	})
}

func TestMembership(t *testing.T) {
	Convey("Given a membership change", t, func() {
		f := format.New()
		prev := model.NewRoster("Alice", "Bob")
		cur := model.NewRoster("Alice", "Carol")

		changes := []model.Change{
			{Kind: model.Added, Key: "Carol"},
			{Kind: model.Removed, Key: "Bob"},
		}
		msgs := f.Membership(prev, cur, changes)

		Convey("Then one message lists counts, fingerprint and each change", func() {
			So(msgs, ShouldHaveLength, 1)
			So(msgs[0], ShouldContainSubstring, "Previous: **2** | Current: **2**")
			So(msgs[0], ShouldContainSubstring, format.Fingerprint(cur))
			So(msgs[0], ShouldContainSubstring, "**Joined:** Carol")
			So(msgs[0], ShouldContainSubstring, "**Left:** Bob")
			So(strings.Index(msgs[0], "Joined"), ShouldBeLessThan, strings.Index(msgs[0], "Left"))
		})

		Convey("Then no message is produced without changes", func() {
			So(f.Membership(prev, prev, nil), ShouldBeNil)
		})

		Convey("Then records of other kinds are not membership changes", func() {
			other := []model.Change{{Kind: model.MetricIncreased, Key: "alice", Metric: "attack", Old: 1, New: 2}}
			So(f.Membership(prev, cur, other), ShouldBeNil)
		})
	})

	Convey("Given rosters that differ only in iteration order", t, func() {
		a := model.NewRoster("b", "A", "c")
		b := model.NewRoster("c", "b", "A")

		Convey("Then their fingerprints match", func() {
			So(format.Fingerprint(a), ShouldEqual, format.Fingerprint(b))
			So(format.Fingerprint(a), ShouldHaveLength, 10)
		})
	})
}

func TestLevelUps(t *testing.T) {
	Convey("Given increases for two players", t, func() {
		f := format.New()
		changes := []model.Change{
			{Kind: model.MetricIncreased, Key: "alice", Metric: "attack", Old: 70, New: 75},
			{Kind: model.MetricIncreased, Key: "alice", Metric: "magic", Old: 50, New: 51},
			{Kind: model.MetricIncreased, Key: "bob", Metric: "prayer", Old: 1, New: 2},
		}

		msgs := f.LevelUps(changes, map[string]string{"alice": "Alice"})

		Convey("Then each player gets one self-contained line", func() {
			So(msgs, ShouldHaveLength, 1)
			lines := strings.Split(msgs[0], "\n")
			So(lines, ShouldResemble, []string{
				"🎉 **Alice** leveled up! attack 70->75, magic 50->51",
				"🎉 **bob** leveled up! prayer 1->2",
			})
		})

		Convey("Then nothing is produced without increases", func() {
			So(f.LevelUps(nil, nil), ShouldBeNil)
			So(f.LevelUps([]model.Change{{Kind: model.Added, Key: "x"}}, nil), ShouldBeNil)
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given a leaderboard with more rows than the limit", t, func() {
		f := format.New()
		rows := []model.LeaderboardRow{
			{DisplayName: "Zed", Gained: 2_500_000},
			{DisplayName: "Amy", Gained: 1_200},
			{DisplayName: "Bob", Gained: 10},
		}

		msgs := f.Leaderboard("2026-W01", "week", "overall", rows, 2)

		Convey("Then exactly two ranked lines follow the header, in source order", func() {
			So(msgs, ShouldHaveLength, 1)
			lines := strings.Split(msgs[0], "\n")
			So(lines, ShouldHaveLength, 3)
			So(lines[0], ShouldContainSubstring, "Weekly Top XP Gained** (2026-W01) | Top 2")
			So(lines[1], ShouldEqual, "**1.** Zed | **2.50M XP**")
			So(lines[2], ShouldEqual, "**2.** Amy | **1.20K XP**")
		})

		Convey("Then an empty leaderboard renders nothing", func() {
			So(f.Leaderboard("2026-W01", "week", "overall", nil, 10), ShouldBeNil)
		})

		Convey("Then a skill metric is named in the header", func() {
			msgs := f.Leaderboard("2026-W01", "month", "attack", rows, 0)
			So(msgs[0], ShouldStartWith, "📊 **Monthly Top attack XP Gained**")
			So(strings.Split(msgs[0], "\n"), ShouldHaveLength, 4)
		})
	})

	Convey("Given a full top ten under the default line limit", t, func() {
		f := format.New()
		rows := make([]model.LeaderboardRow, 11)
		for i := range rows {
			rows[i] = model.LeaderboardRow{DisplayName: fmt.Sprintf("p%d", i+1), Gained: int64(1000 - i)}
		}

		Convey("When ten rows are rendered", func() {
			msgs := f.Leaderboard("2026-W01", "week", "overall", rows, 10)

			Convey("Then the header and every row share one message", func() {
				So(msgs, ShouldHaveLength, 1)
				lines := strings.Split(msgs[0], "\n")
				So(lines, ShouldHaveLength, 11)
				So(lines[10], ShouldStartWith, "**10.** p10")
			})
		})

		Convey("When more rows than the line limit are rendered", func() {
			msgs := f.Leaderboard("2026-W01", "week", "overall", rows, 0)

			Convey("Then only the overflow moves to the next message", func() {
				So(msgs, ShouldHaveLength, 2)
				So(strings.Split(msgs[0], "\n"), ShouldHaveLength, 11)
				So(msgs[1], ShouldStartWith, "**11.** p11")
			})
		})
	})
}
