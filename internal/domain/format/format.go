// Package format renders change-sets and leaderboards into bounded chat
// messages.
package format

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/groupwatch/internal/domain/model"
)

const (
	defaultMaxLines = 10
	// Discord rejects message content above 2000 characters.
	defaultMaxChars = 2000
	ellipsis        = "…"
)

// Formatter renders notification lines and batches them into messages.
type Formatter struct {
	maxLines int
	maxChars int
}

// New creates a Formatter with the given options.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		maxLines: defaultMaxLines,
		maxChars: defaultMaxChars,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Batch groups lines into messages of at most maxLines lines and maxChars
// characters. A line is never split across messages; a single line longer
// than maxChars is truncated.
func (f *Formatter) Batch(lines []string) []string {
	return f.batch(lines, 0)
}

// batch is Batch with the first message allowed extra lines beyond maxLines,
// for a header that should not push a row into the next message.
func (f *Formatter) batch(lines []string, extra int) []string {
	var (
		out   []string
		chunk []string
		size  int
		limit = f.maxLines + extra
	)
	flush := func() {
		if len(chunk) > 0 {
			out = append(out, strings.Join(chunk, "\n"))
			chunk, size = nil, 0
			limit = f.maxLines
		}
	}
	for _, line := range lines {
		line = truncate(line, f.maxChars)
		n := utf8.RuneCountInString(line)
		if len(chunk) > 0 && size+1+n > f.maxChars {
			flush()
		}
		if len(chunk) > 0 {
			size++
		}
		chunk = append(chunk, line)
		size += n
		if len(chunk) >= limit {
			flush()
		}
	}
	flush()
	return out
}

// Membership renders Added and Removed records into messages, keeping their
// order. It returns nil when there is nothing to report.
func (f *Formatter) Membership(prev, cur model.Roster, changes []model.Change) []string {
	lines := []string{
		"🔔 **WOM group membership changed**",
		fmt.Sprintf("- Previous: **%d** | Current: **%d** | Snapshot: `%s`", prev.Len(), cur.Len(), Fingerprint(cur)),
	}
	header := len(lines)
	for _, c := range changes {
		switch c.Kind {
		case model.Added:
			lines = append(lines, fmt.Sprintf("✅ **Joined:** %s", c.Key))
		case model.Removed:
			lines = append(lines, fmt.Sprintf("❌ **Left:** %s", c.Key))
		}
	}
	if len(lines) == header {
		return nil
	}
	return f.Batch(lines)
}

// LevelUps renders MetricIncreased records, one line per player. display maps
// folded keys to display names; unknown keys are rendered as-is.
func (f *Formatter) LevelUps(changes []model.Change, display map[string]string) []string {
	var (
		lines []string
		key   string
		parts []string
	)
	emit := func() {
		if len(parts) == 0 {
			return
		}
		name := key
		if d, ok := display[key]; ok && d != "" {
			name = d
		}
		lines = append(lines, fmt.Sprintf("🎉 **%s** leveled up! %s", name, strings.Join(parts, ", ")))
		parts = nil
	}
	for _, c := range changes {
		if c.Kind != model.MetricIncreased {
			continue
		}
		if c.Key != key {
			emit()
			key = c.Key
		}
		parts = append(parts, fmt.Sprintf("%s %d->%d", c.Metric, c.Old, c.New))
	}
	emit()
	if len(lines) == 0 {
		return nil
	}
	return f.Batch(lines)
}

// Leaderboard renders the ranked gains report for the period identified by
// marker, keeping the row order and at most limit rows. The header line is
// not counted against the per-message line limit. It returns nil for an
// empty leaderboard.
func (f *Formatter) Leaderboard(marker, period, metric string, rows []model.LeaderboardRow, limit int) []string {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if len(rows) == 0 {
		return nil
	}
	what := "XP"
	if metric != "" && metric != "overall" {
		what = metric + " XP"
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, fmt.Sprintf("📊 **%s Top %s Gained** (%s) | Top %d", periodTitle(period), what, marker, len(rows)))
	for i, r := range rows {
		lines = append(lines, fmt.Sprintf("**%d.** %s | **%s XP**", i+1, r.DisplayName, FormatAmount(r.Gained)))
	}
	return f.batch(lines, 1)
}

func periodTitle(period string) string {
	switch strings.ToLower(period) {
	case "day":
		return "Daily"
	case "week":
		return "Weekly"
	case "month":
		return "Monthly"
	case "year":
		return "Yearly"
	default:
		return "Period"
	}
}

// FormatAmount abbreviates large values: 12345678 -> "12.35M",
// 123456 -> "123.46K", 999 -> "999".
func FormatAmount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// Fingerprint returns a short, stable hash of the roster's sorted names.
func Fingerprint(r model.Roster) string {
	sum := sha256.Sum256([]byte(strings.Join(r.Names(), "\n")))
	return hex.EncodeToString(sum[:])[:10]
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	r := []rune(s)
	return string(r[:keep]) + ellipsis
}
