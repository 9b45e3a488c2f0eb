// Package app sequences one watcher run: load the previous snapshot, fetch
// the current state, diff, deliver notifications and persist.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/groupwatch/internal/domain/diff"
	"github.com/okian/groupwatch/internal/domain/format"
	"github.com/okian/groupwatch/internal/domain/model"
	"github.com/okian/groupwatch/pkg/logger"
	"github.com/okian/groupwatch/pkg/metrics"
)

// Job names.
const (
	JobMembers = "members"
	JobLevels  = "levels"
	JobGains   = "gains"
)

// Snapshot document names, one per job.
const (
	SnapshotMembers = "known_members"
	SnapshotLevels  = "known_levels"
	SnapshotGains   = "weekly_gains_state"
)

// Source fetches the current upstream state.
type Source interface {
	FetchRoster(ctx context.Context, groupID string) (model.Roster, error)
	FetchPlayerMetrics(ctx context.Context, username string) (model.Levels, error)
	FetchLeaderboard(ctx context.Context, groupID, metric, period string, limit int) ([]model.LeaderboardRow, error)
	RequestRefresh(ctx context.Context, groupID, verificationCode string) error
	Throttle(ctx context.Context) error
}

// Store persists snapshots between runs.
type Store interface {
	LoadRoster(ctx context.Context, name string) (model.Roster, error)
	SaveRoster(ctx context.Context, name string, r model.Roster) error
	LoadMetrics(ctx context.Context, name string) (model.MetricSnapshot, error)
	SaveMetrics(ctx context.Context, name string, snap model.MetricSnapshot) error
	LoadPeriod(ctx context.Context, name string) (string, error)
	SavePeriod(ctx context.Context, name, marker string) error
}

// Sink delivers one rendered message.
type Sink interface {
	Send(ctx context.Context, content string) error
}

// Report summarises a finished run.
type Report struct {
	RunID    string
	Job      string
	State    State
	Baseline bool
	Changes  int
	Sent     int
	Failed   int
	Skipped  int
	Period   string
	Duration time.Duration
}

// Runner executes jobs. A Runner holds no state between runs.
type Runner struct {
	source    Source
	store     Store
	sink      Sink
	formatter *format.Formatter
	logger    logger.Logger
	clock     func() time.Time

	groupID          string
	filter           diff.Filter
	gainsMetric      string
	gainsPeriod      string
	topN             int
	verificationCode string
}

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithGroupID sets the watched group.
func WithGroupID(id string) Option {
	return func(r *Runner) {
		r.groupID = id
	}
}

// WithMetricFilter restricts which metrics the levels job compares.
func WithMetricFilter(f diff.Filter) Option {
	return func(r *Runner) {
		r.filter = f
	}
}

// WithLeaderboard parameterises the gains job.
func WithLeaderboard(metric, period string, topN int) Option {
	return func(r *Runner) {
		if metric != "" {
			r.gainsMetric = metric
		}
		if period != "" {
			r.gainsPeriod = period
		}
		if topN > 0 {
			r.topN = topN
		}
	}
}

// WithRefreshCode makes the levels job request an upstream refresh first.
func WithRefreshCode(code string) Option {
	return func(r *Runner) {
		r.verificationCode = code
	}
}

// WithFormatter replaces the default formatter.
func WithFormatter(f *format.Formatter) Option {
	return func(r *Runner) {
		if f != nil {
			r.formatter = f
		}
	}
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New constructs a Runner over its collaborators.
func New(source Source, store Store, sink Sink, opts ...Option) *Runner {
	r := &Runner{
		source:      source,
		store:       store,
		sink:        sink,
		formatter:   format.New(),
		logger:      logger.Nop(),
		clock:       time.Now,
		filter:      diff.All(),
		gainsMetric: "overall",
		gainsPeriod: "week",
		topN:        10,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes job once. A non-nil error means the run aborted and the
// process should exit non-zero; the report is still populated.
func (r *Runner) Run(ctx context.Context, job string) (Report, error) {
	run := &runState{
		report: Report{RunID: uuid.NewString(), Job: job, State: StateStart},
	}
	run.log = r.logger.With(logger.String("run_id", run.report.RunID), logger.String("job", job))
	start := r.clock()

	var err error
	switch job {
	case JobMembers:
		err = r.runMembers(ctx, run)
	case JobLevels:
		err = r.runLevels(ctx, run)
	case JobGains:
		err = r.runGains(ctx, run)
	default:
		return run.report, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}

	run.report.Duration = r.clock().Sub(start)
	if err != nil {
		at := run.report.State
		run.to(StateAborted)
		run.log.Error(ctx, "run aborted", logger.Error(err), logger.String("at", at.String()))
	} else {
		run.to(StateDone)
		metrics.RecordRunSuccess(job, r.clock())
		run.log.Info(ctx, "run finished",
			logger.Bool("baseline", run.report.Baseline),
			logger.Int("changes", run.report.Changes),
			logger.Int("sent", run.report.Sent),
			logger.Int("failed", run.report.Failed),
			logger.Int("skipped", run.report.Skipped),
		)
	}
	metrics.RecordRun(job, run.report.State.String(), run.report.Duration)
	return run.report, err
}

type runState struct {
	report Report
	log    logger.Logger
}

func (s *runState) to(next State) {
	s.report.State = next
}

func (r *Runner) runMembers(ctx context.Context, run *runState) error {
	prev, err := r.store.LoadRoster(ctx, SnapshotMembers)
	if err != nil {
		return err
	}
	cur, err := r.source.FetchRoster(ctx, r.groupID)
	if err != nil {
		return err
	}
	run.to(StateFetched)

	var changes []model.Change
	if prev.Len() > 0 {
		changes = diff.SetChanges(prev, cur)
	}
	run.to(StateDiffed)
	run.report.Changes = len(changes)
	kinds := make(map[model.ChangeKind]int, 2)
	for _, c := range changes {
		kinds[c.Kind]++
	}
	metrics.RecordChanges(JobMembers, model.Added.String(), kinds[model.Added])
	metrics.RecordChanges(JobMembers, model.Removed.String(), kinds[model.Removed])

	switch {
	case prev.Len() == 0:
		run.report.Baseline = true
		run.to(StateNoChange)
		run.log.Info(ctx, "baseline recorded", logger.Int("members", cur.Len()))
	case run.report.Changes == 0:
		run.to(StateNoChange)
	default:
		r.deliver(ctx, run, r.formatter.Membership(prev, cur, changes))
	}

	if err := r.store.SaveRoster(ctx, SnapshotMembers, cur); err != nil {
		return err
	}
	run.to(StatePersisted)
	return nil
}

func (r *Runner) runLevels(ctx context.Context, run *runState) error {
	prev, err := r.store.LoadMetrics(ctx, SnapshotLevels)
	if err != nil {
		return err
	}
	if r.verificationCode != "" {
		if err := r.source.RequestRefresh(ctx, r.groupID, r.verificationCode); err != nil {
			run.log.Warn(ctx, "refresh request failed", logger.Error(err))
		}
	}
	roster, err := r.source.FetchRoster(ctx, r.groupID)
	if err != nil {
		return err
	}

	cur := model.MetricSnapshot{}
	display := make(map[string]string, roster.Len())
	for _, name := range roster.Names() {
		if err := r.source.Throttle(ctx); err != nil {
			return err
		}
		levels, err := r.source.FetchPlayerMetrics(ctx, name)
		if err != nil {
			run.report.Skipped++
			metrics.RecordEntitySkipped(JobLevels)
			run.log.Warn(ctx, "player skipped", logger.String("player", name), logger.Error(err))
			continue
		}
		key := model.FoldKey(name)
		cur[key] = levels
		display[key] = name
	}
	run.to(StateFetched)

	changes := diff.DiffMetrics(prev, cur, r.filter)
	run.to(StateDiffed)
	run.report.Changes = len(changes)
	run.report.Baseline = len(prev) == 0
	metrics.RecordChanges(JobLevels, model.MetricIncreased.String(), len(changes))

	if len(changes) == 0 {
		run.to(StateNoChange)
	} else {
		r.deliver(ctx, run, r.formatter.LevelUps(changes, display))
	}

	if err := r.store.SaveMetrics(ctx, SnapshotLevels, diff.Merge(prev, cur)); err != nil {
		return err
	}
	run.to(StatePersisted)
	return nil
}

func (r *Runner) runGains(ctx context.Context, run *runState) error {
	marker := model.PeriodMarker(r.gainsPeriod, r.clock())
	run.report.Period = marker

	last, err := r.store.LoadPeriod(ctx, SnapshotGains)
	if err != nil {
		return err
	}
	if last == marker {
		run.log.Info(ctx, "period already posted", logger.String("period", marker))
		return nil
	}

	rows, err := r.source.FetchLeaderboard(ctx, r.groupID, r.gainsMetric, r.gainsPeriod, r.topN)
	if err != nil {
		return err
	}
	run.to(StateFetched)

	msgs := r.formatter.Leaderboard(marker, r.gainsPeriod, r.gainsMetric, rows, r.topN)
	run.to(StateDiffed)
	run.report.Changes = len(rows)

	if len(msgs) == 0 {
		run.to(StateNoChange)
	} else {
		r.deliver(ctx, run, msgs)
	}

	if err := r.store.SavePeriod(ctx, SnapshotGains, marker); err != nil {
		return err
	}
	run.to(StatePersisted)
	return nil
}

// deliver sends every message in order. Failures are logged and counted;
// they never stop the run from persisting.
func (r *Runner) deliver(ctx context.Context, run *runState, msgs []string) {
	for i, msg := range msgs {
		if err := r.sink.Send(ctx, msg); err != nil {
			run.report.Failed++
			run.log.Error(ctx, "delivery failed",
				logger.Int("message", i+1),
				logger.Int("of", len(msgs)),
				logger.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		run.report.Sent++
	}
	run.to(StateNotified)
}
