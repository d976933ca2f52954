// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package pipeline coordinates the retraining cycle: backup, feedback
// collection, model update, change measurement, and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/feedback"
	"github.com/mfeltner/suggestd/internal/journal"
	"github.com/mfeltner/suggestd/internal/markov"
	"github.com/mfeltner/suggestd/internal/metrics"
)

// Phase names one stage of the retraining cycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseBackingUp  Phase = "backing_up"
	PhaseCollecting Phase = "collecting"
	PhaseUpdating   Phase = "updating"
	PhaseDiffing    Phase = "diffing"
	PhasePublished  Phase = "published"
	PhaseRejected   Phase = "rejected"
)

// Config controls the retraining pipeline.
type Config struct {
	// SnapshotPath is the live model snapshot location.
	SnapshotPath string

	// BackupDir receives timestamped snapshot copies before each cycle.
	BackupDir string

	// ChangeThreshold is the minimum change degree that publishes an
	// update event. Default: 0.15.
	ChangeThreshold float64

	// PublishTimeout bounds the asynchronous publish. Default: 30s.
	PublishTimeout time.Duration
}

// Result describes one retraining attempt.
type Result struct {
	// Applied is true when the model was updated with new feedback.
	Applied bool

	// Reason explains a cycle that did not update the model.
	Reason string

	// Phase is the terminal phase of the cycle.
	Phase Phase

	// Change is the measured difference against the previous snapshot.
	Change ChangeReport

	// Report is the update engine's account of the applied batch.
	Report feedback.Report

	Duration time.Duration
}

// Statistics is the operational summary exposed over the API.
type Statistics struct {
	StateCount      int       `json:"state_count"`
	ModelVersion    int64     `json:"model_version"`
	PendingFeedback int       `json:"pending_feedback_count"`
	BufferedEntries int       `json:"buffered_entries"`
	LastUpdate      time.Time `json:"last_update_timestamp"`
	Phase           Phase     `json:"phase"`
	CacheHits       int64     `json:"cache_hits"`
	CacheMisses     int64     `json:"cache_misses"`
}

// CacheStatter reports suggestion cache counters for Statistics.
type CacheStatter interface {
	CacheStats() (hits, misses int64)
}

// Pipeline owns the retraining cycle. Exactly one cycle runs at a time;
// concurrent triggers are rejected, not queued, because a second cycle
// started during the first would only re-drain an empty buffer.
type Pipeline struct {
	model     *markov.Model
	engine    *feedback.UpdateEngine
	buffer    *feedback.Buffer
	journal   *journal.Journal
	publisher Publisher
	cache     CacheStatter
	cfg       Config
	logger    zerolog.Logger

	running atomic.Bool
	phase   atomic.Value // Phase
	now     func() time.Time
}

// New assembles the pipeline. The cache statter may be nil.
func New(
	model *markov.Model,
	engine *feedback.UpdateEngine,
	buffer *feedback.Buffer,
	jnl *journal.Journal,
	publisher Publisher,
	cache CacheStatter,
	cfg Config,
	logger zerolog.Logger,
) *Pipeline {
	if cfg.ChangeThreshold <= 0 {
		cfg.ChangeThreshold = 0.15
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 30 * time.Second
	}
	p := &Pipeline{
		model:     model,
		engine:    engine,
		buffer:    buffer,
		journal:   jnl,
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
	p.phase.Store(PhaseIdle)
	return p
}

// Phase returns the pipeline's current stage.
func (p *Pipeline) Phase() Phase {
	return p.phase.Load().(Phase)
}

// AddFeedback journals the entry, buffers it, and reports whether this entry
// crossed the retraining threshold. The caller decides whether to start a
// cycle; crossing is reported exactly once per fill.
func (p *Pipeline) AddFeedback(ctx context.Context, entry feedback.Entry) (thresholdCrossed bool, err error) {
	id, err := p.journal.Append(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("journal feedback: %w", err)
	}

	kind := "rating"
	if entry.Signal.Reaction != "" {
		kind = "reaction"
	}
	metrics.FeedbackReceived.WithLabelValues(kind).Inc()

	crossed := p.buffer.Add(feedback.Buffered{ID: id, Entry: entry})
	metrics.PendingFeedback.Set(float64(p.buffer.Len()))
	return crossed, nil
}

// RestoreBuffer reloads unapplied journal entries into the buffer. Called
// once at startup so feedback accepted before a crash still counts toward
// the next cycle.
func (p *Pipeline) RestoreBuffer(ctx context.Context) (int, error) {
	pending, err := p.journal.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("read pending feedback: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	recs := make([]feedback.Buffered, 0, len(pending))
	for _, rec := range pending {
		recs = append(recs, feedback.Buffered{ID: rec.ID, Entry: rec.Entry})
	}
	p.buffer.Restore(recs)
	metrics.PendingFeedback.Set(float64(p.buffer.Len()))
	p.logger.Info().Int("entries", len(recs)).Msg("restored buffered feedback from journal")
	return len(recs), nil
}

// Retrain runs one full cycle. A cycle already in flight returns a rejected
// result rather than blocking.
func (p *Pipeline) Retrain(ctx context.Context) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Result{Reason: "retrain already in progress", Phase: p.Phase()}, nil
	}
	defer func() {
		p.running.Store(false)
		p.phase.Store(PhaseIdle)
	}()

	start := p.now()
	result, err := p.run(ctx)
	result.Duration = p.now().Sub(start)

	switch {
	case err != nil:
		metrics.ObserveRetrain("failed", result.Duration)
	case !result.Applied:
		metrics.ObserveRetrain("skipped", result.Duration)
	case result.Phase == PhasePublished:
		metrics.ObserveRetrain("published", result.Duration)
	default:
		metrics.ObserveRetrain("rejected", result.Duration)
	}
	metrics.ModelStates.Set(float64(p.model.StateCount()))
	metrics.ModelVersion.Set(float64(p.model.Version()))
	metrics.PendingFeedback.Set(float64(p.buffer.Len()))
	return result, err
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	var result Result

	p.phase.Store(PhaseBackingUp)
	previous, err := p.backup()
	if err != nil {
		result.Phase = PhaseRejected
		return result, fmt.Errorf("backup: %w", err)
	}

	p.phase.Store(PhaseCollecting)
	batch := p.buffer.Drain()
	if len(batch) == 0 {
		result.Phase = PhaseRejected
		result.Reason = "insufficient data"
		p.logger.Debug().Msg("retrain skipped; no buffered feedback")
		return result, nil
	}

	entries := make([]feedback.Entry, 0, len(batch))
	ids := make([]string, 0, len(batch))
	for _, rec := range batch {
		entries = append(entries, rec.Entry)
		ids = append(ids, rec.ID)
	}

	p.phase.Store(PhaseUpdating)
	report, err := p.engine.Apply(entries)
	if err != nil {
		// The batch was not applied; put it back so the next cycle can
		// retry. The journal still holds every entry.
		p.buffer.Restore(batch)
		result.Phase = PhaseRejected
		result.Report = report
		return result, fmt.Errorf("apply feedback: %w", err)
	}
	result.Applied = report.Applied
	result.Report = report

	if err := p.journal.Confirm(ctx, ids); err != nil {
		// The model is already updated and persisted. Confirmed-too-late
		// entries would be re-applied on restart; log loudly but do not
		// fail the cycle.
		p.logger.Error().Err(err).Int("entries", len(ids)).
			Msg("journal confirm failed; entries may be re-applied on restart")
	}

	p.phase.Store(PhaseDiffing)
	current, err := markov.ReadSnapshot(p.cfg.SnapshotPath)
	if err != nil {
		result.Phase = PhaseRejected
		return result, fmt.Errorf("read updated snapshot: %w", err)
	}
	result.Change = Compare(previous, current)

	if result.Change.Degree <= p.cfg.ChangeThreshold {
		result.Phase = PhaseRejected
		result.Reason = "change below threshold"
		p.phase.Store(PhaseRejected)
		p.logger.Info().
			Float64("degree", result.Change.Degree).
			Float64("threshold", p.cfg.ChangeThreshold).
			Msg("model updated; change too small to publish")
		return result, nil
	}

	result.Phase = PhasePublished
	p.phase.Store(PhasePublished)
	p.publishAsync(result.Change)
	p.logger.Info().
		Float64("degree", result.Change.Degree).
		Int("transitions", report.Transitions).
		Int64("model_version", p.model.Version()).
		Msg("retrain cycle published")
	return result, nil
}

// backup copies the live snapshot into the backup directory before the
// cycle mutates it, and returns the parsed previous snapshot. On the first
// run there is nothing to copy; an empty marker records that the cycle ran.
func (p *Pipeline) backup() (*markov.Snapshot, error) {
	if p.cfg.BackupDir == "" {
		return p.readPrevious()
	}
	if err := os.MkdirAll(p.cfg.BackupDir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("model-%s.json", p.now().UTC().Format("20060102T150405.000"))
	dst := filepath.Join(p.cfg.BackupDir, name)

	src, err := os.Open(p.cfg.SnapshotPath)
	if os.IsNotExist(err) {
		if werr := os.WriteFile(dst+".empty", nil, 0o600); werr != nil {
			return nil, fmt.Errorf("write first-run marker: %w", werr)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return nil, fmt.Errorf("copy snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close backup: %w", err)
	}

	return p.readPrevious()
}

func (p *Pipeline) readPrevious() (*markov.Snapshot, error) {
	snap, err := markov.ReadSnapshot(p.cfg.SnapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read previous snapshot: %w", err)
	}
	return snap, nil
}

// publishAsync delivers the update event off the retraining path.
func (p *Pipeline) publishAsync(change ChangeReport) {
	event := Event{
		EventType:    "model_update",
		ChangeDegree: change.Degree,
		Summary:      change.Summary,
		ModelVersion: p.model.Version(),
		StateCount:   p.model.StateCount(),
		Timestamp:    p.now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
		defer cancel()
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.logger.Warn().Err(err).Msg("model update event not delivered")
		}
	}()
}

// Stats assembles the operational summary.
func (p *Pipeline) Stats(ctx context.Context) (Statistics, error) {
	pending, err := p.journal.PendingCount(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("count pending feedback: %w", err)
	}
	stats := Statistics{
		StateCount:      p.model.StateCount(),
		ModelVersion:    p.model.Version(),
		PendingFeedback: pending,
		BufferedEntries: p.buffer.Len(),
		LastUpdate:      p.model.UpdatedAt(),
		Phase:           p.Phase(),
	}
	if p.cache != nil {
		stats.CacheHits, stats.CacheMisses = p.cache.CacheStats()
	}
	return stats, nil
}
