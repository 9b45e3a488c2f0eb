// Package repository persists the named snapshots a run diffs against.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/groupwatch/internal/domain/model"
	"github.com/okian/groupwatch/pkg/logger"
	"github.com/okian/groupwatch/pkg/metrics"
)

// Backend stores opaque snapshot documents by name.
type Backend interface {
	// Get returns the document stored under name, or errNotExist.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put replaces the document stored under name. A failed Put must leave
	// the previous document readable.
	Put(ctx context.Context, name string, body []byte) error
	Close() error
}

// Store loads and saves typed snapshots on top of a Backend.
//
// Concurrent runs against the same snapshot name are not supported; the last
// writer wins and the loser's observations are lost.
type Store struct {
	backend Backend
	logger  logger.Logger
}

// NewStore wraps backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

type rosterDoc struct {
	Members []memberDoc `json:"members"`
}

type memberDoc struct {
	Username string `json:"username"`
}

type periodDoc struct {
	LastPostedPeriod string `json:"last_posted_period"`
}

// LoadRoster returns the stored roster, or an empty one on first run.
func (s *Store) LoadRoster(ctx context.Context, name string) (model.Roster, error) {
	var raw struct {
		Members []json.RawMessage `json:"members"`
	}
	found, err := s.load(ctx, name, &raw)
	if err != nil || !found {
		return model.Roster{}, err
	}
	r := model.Roster{}
	for _, m := range raw.Members {
		// Older state files stored bare strings instead of objects.
		var obj memberDoc
		if err := json.Unmarshal(m, &obj); err == nil {
			r.Add(obj.Username)
			continue
		}
		var str string
		if err := json.Unmarshal(m, &str); err == nil {
			r.Add(str)
		}
	}
	metrics.UpdateSnapshotKeys(name, r.Len())
	return r, nil
}

// SaveRoster persists r with members sorted case-insensitively.
func (s *Store) SaveRoster(ctx context.Context, name string, r model.Roster) error {
	doc := rosterDoc{Members: make([]memberDoc, 0, r.Len())}
	for _, n := range r.Names() {
		doc.Members = append(doc.Members, memberDoc{Username: n})
	}
	if err := s.save(ctx, name, doc); err != nil {
		return err
	}
	metrics.UpdateSnapshotKeys(name, r.Len())
	return nil
}

// LoadMetrics returns the stored metric snapshot, or an empty one on first run.
func (s *Store) LoadMetrics(ctx context.Context, name string) (model.MetricSnapshot, error) {
	var raw map[string]map[string]json.RawMessage
	found, err := s.load(ctx, name, &raw)
	if err != nil || !found {
		return model.MetricSnapshot{}, err
	}
	snap := make(model.MetricSnapshot, len(raw))
	for key, levels := range raw {
		k := model.FoldKey(key)
		if k == "" {
			continue
		}
		lv, ok := snap[k]
		if !ok {
			lv = model.Levels{}
			snap[k] = lv
		}
		for metric, v := range levels {
			var n int
			if err := json.Unmarshal(v, &n); err != nil {
				continue
			}
			lv[metric] = n
		}
	}
	metrics.UpdateSnapshotKeys(name, len(snap))
	return snap, nil
}

// SaveMetrics persists snap. Map keys are emitted sorted.
func (s *Store) SaveMetrics(ctx context.Context, name string, snap model.MetricSnapshot) error {
	if snap == nil {
		snap = model.MetricSnapshot{}
	}
	if err := s.save(ctx, name, snap); err != nil {
		return err
	}
	metrics.UpdateSnapshotKeys(name, len(snap))
	return nil
}

// LoadPeriod returns the last posted period marker, or "" on first run.
func (s *Store) LoadPeriod(ctx context.Context, name string) (string, error) {
	var doc periodDoc
	if _, err := s.load(ctx, name, &doc); err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.LastPostedPeriod), nil
}

// SavePeriod records marker as posted.
func (s *Store) SavePeriod(ctx context.Context, name, marker string) error {
	return s.save(ctx, name, periodDoc{LastPostedPeriod: marker})
}

// load decodes the named document into v. Absent and malformed documents
// report found=false without error.
func (s *Store) load(ctx context.Context, name string, v any) (bool, error) {
	body, err := s.backend.Get(ctx, name)
	if errors.Is(err, errNotExist) {
		s.logger.Info(ctx, "no snapshot yet; starting from an empty baseline", logger.String("snapshot", name))
		return false, nil
	}
	if err != nil {
		metrics.RecordStorageError("load")
		return false, fmt.Errorf("%w: load %s: %v", ErrStorage, name, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		s.logger.Warn(ctx, "empty snapshot; treating as absent", logger.String("snapshot", name))
		return false, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.logger.Warn(ctx, "malformed snapshot; treating as absent",
			logger.String("snapshot", name),
			logger.Error(err),
		)
		return false, nil
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, name string, v any) error {
	body, err := Encode(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, name, err)
	}
	if err := s.backend.Put(ctx, name, body); err != nil {
		metrics.RecordStorageError("save")
		return fmt.Errorf("%w: save %s: %v", ErrStorage, name, err)
	}
	s.logger.Debug(ctx, "snapshot saved", logger.String("snapshot", name), logger.Int("bytes", len(body)))
	return nil
}

// Encode renders v as indented JSON with a trailing newline. encoding/json
// sorts map keys, so equal inputs always produce equal bytes.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
