// Package engine coordinates bulk hierarchical issue creation: reference
// analysis, dependency-ordered level submission, result reconciliation, and
// manifest persistence for resumable retry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/treeline-dev/treeline/internal/hierarchy"
	"github.com/treeline-dev/treeline/internal/jira"
	"github.com/treeline-dev/treeline/internal/manifest"
	"github.com/treeline-dev/treeline/internal/telemetry"
	"github.com/treeline-dev/treeline/internal/types"
)

// Builder produces a validated creation payload for one record, or a
// *types.ValidationError. It performs no creation calls itself.
type Builder interface {
	Build(ctx context.Context, rec types.Record) (jira.Payload, error)
}

// BulkCreator submits one multi-issue create call. Implemented by
// *jira.Client; faked in tests.
type BulkCreator interface {
	BulkCreate(ctx context.Context, payloads []jira.Payload, timeout time.Duration) (*jira.BulkResult, error)
}

// defaultConcurrency bounds the per-level validation fan-out.
const defaultConcurrency = 16

// Options tunes an Engine. Zero values get sensible defaults.
type Options struct {
	// Timeout bounds each level's bulk call. Zero means jira.DefaultTimeout.
	Timeout time.Duration
	// Concurrency caps concurrent payload builds within a level.
	Concurrency int
	// Logger receives run progress and swallowed persistence failures.
	Logger logrus.FieldLogger
	// Metrics receives run/row counters. Nil creates counters on the
	// global (by default no-op) meter.
	Metrics *telemetry.Metrics
}

// Engine runs fresh bulk runs and manifest-seeded retries. An Engine is
// stateless across runs; all per-run state (tracker, accumulators, index
// maps) is owned by the executing call.
type Engine struct {
	builder Builder
	bulk    BulkCreator
	store   manifest.Store

	timeout time.Duration
	conc    int
	log     logrus.FieldLogger
	metrics *telemetry.Metrics
}

// New creates an engine from its three collaborators.
func New(builder Builder, bulk BulkCreator, store manifest.Store, opts Options) (*Engine, error) {
	if builder == nil || bulk == nil || store == nil {
		return nil, errors.New("engine: builder, bulk creator, and store are all required")
	}
	e := &Engine{
		builder: builder,
		bulk:    bulk,
		store:   store,
		timeout: opts.Timeout,
		conc:    opts.Concurrency,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if e.timeout <= 0 {
		e.timeout = jira.DefaultTimeout
	}
	if e.conc <= 0 {
		e.conc = defaultConcurrency
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if e.metrics == nil {
		m, err := telemetry.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("engine: init metrics: %w", err)
		}
		e.metrics = m
	}
	return e, nil
}

// Summary is the caller-facing outcome of a run or retry. Results is sorted
// ascending by original row index and covers every row exactly once.
type Summary struct {
	Total       int                `json:"total"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Manifest    *manifest.Manifest `json:"manifest"`
	Results     []types.RowResult  `json:"results"`
	Persistence manifest.PutStatus `json:"-"`
}

// Run executes a fresh bulk run over records.
//
// Duplicate uids and reference cycles fail immediately with no manifest.
// Everything after that is collected per row: validation failures, bulk
// element rejections, and level-wide transport failures all land in the
// manifest, which is persisted (best effort) before the summary returns.
func (e *Engine) Run(ctx context.Context, records []types.Record) (*Summary, error) {
	if len(records) == 0 {
		return nil, errors.New("no records to create")
	}

	refs, err := hierarchy.DetectRefs(records)
	if err != nil {
		return nil, err
	}
	if err := hierarchy.DetectCycle(records, refs); err != nil {
		return nil, err
	}
	levels, err := hierarchy.BuildLevels(records, refs)
	if err != nil {
		return nil, err
	}

	e.metrics.Runs.Add(ctx, 1)

	m := manifest.New(manifest.NewRunID(), len(records))
	e.log.WithFields(logrus.Fields{
		"run":    m.ID,
		"rows":   len(records),
		"levels": len(levels),
	}).Info("starting bulk run")

	tracker := hierarchy.NewTracker()
	if err := e.executeLevels(ctx, levels, refs.ByIndex, tracker, m, identityIndex); err != nil {
		return nil, err
	}

	m.UIDMap = tracker.Mappings()
	m.Normalize()

	return e.finish(ctx, m)
}

// identityIndex is the fresh-run index map: level rows already carry
// original indices.
func identityIndex(i int) (int, error) { return i, nil }

// buildOutcome is one row's result from the concurrent build fan-out.
type buildOutcome struct {
	payload *jira.Payload
	rowErr  *types.RowError
}

// executeLevels drives level-ordered submission. Level rows carry local
// indices; toOriginal translates them to top-level original row indices
// before anything touches the manifest, and an untranslatable index fails
// the run rather than mis-attribute a result.
func (e *Engine) executeLevels(
	ctx context.Context,
	levels []hierarchy.Level,
	uidByIndex map[int]string,
	tracker *hierarchy.Tracker,
	m *manifest.Manifest,
	toOriginal func(int) (int, error),
) error {
	for levelNum, level := range levels {
		outcomes := e.buildLevel(ctx, level, tracker)

		// Partition: valid payloads go to the bulk call; validation
		// failures are recorded row-locally and never block siblings.
		var payloads []jira.Payload
		var submitted []int // submission index -> position within level
		for i, out := range outcomes {
			if out.rowErr != nil {
				orig, err := toOriginal(level[i].Index)
				if err != nil {
					return err
				}
				m.RecordFailure(orig, out.rowErr)
				continue
			}
			payloads = append(payloads, *out.payload)
			submitted = append(submitted, i)
		}

		if len(payloads) == 0 {
			continue
		}

		e.metrics.Levels.Add(ctx, 1)
		e.log.WithFields(logrus.Fields{
			"run":   m.ID,
			"level": levelNum,
			"rows":  len(payloads),
		}).Debug("submitting level")

		result, err := e.bulk.BulkCreate(ctx, payloads, e.timeout)
		if err != nil {
			// Transport-level failure: this level's submitted rows fail
			// with a generic status, every later level is recorded as not
			// attempted, and earlier levels' successes stand.
			e.log.WithFields(logrus.Fields{
				"run":   m.ID,
				"level": levelNum,
			}).WithError(err).Warn("bulk call failed, aborting remaining levels")

			levelErr := &types.RowError{
				Status:   502,
				Messages: []string{fmt.Sprintf("bulk call failed: %v", err)},
			}
			for _, pos := range submitted {
				orig, ierr := toOriginal(level[pos].Index)
				if ierr != nil {
					return ierr
				}
				m.RecordFailure(orig, levelErr)
			}
			skipErr := &types.RowError{
				Status:   502,
				Messages: []string{"level not attempted: an earlier level's bulk call failed"},
			}
			for _, later := range levels[levelNum+1:] {
				for _, row := range later {
					orig, ierr := toOriginal(row.Index)
					if ierr != nil {
						return ierr
					}
					m.RecordFailure(orig, skipErr)
				}
			}
			return nil
		}

		if err := e.reconcile(level, submitted, result, uidByIndex, tracker, m, toOriginal); err != nil {
			return err
		}
	}
	return nil
}

// buildLevel validates and builds every row of one level concurrently,
// substituting known uid references first. Failures are captured in the
// row's slot; the group never sees an error, so siblings always finish.
func (e *Engine) buildLevel(ctx context.Context, level hierarchy.Level, tracker *hierarchy.Tracker) []buildOutcome {
	outcomes := make([]buildOutcome, len(level))

	g := new(errgroup.Group)
	g.SetLimit(e.conc)
	for i, row := range level {
		g.Go(func() error {
			rec := tracker.ReplaceUIDs(row.Record)
			payload, err := e.builder.Build(ctx, rec)
			if err != nil {
				var verr *types.ValidationError
				if errors.As(err, &verr) {
					outcomes[i] = buildOutcome{rowErr: verr.RowError()}
				} else {
					outcomes[i] = buildOutcome{rowErr: &types.RowError{
						Status:   500,
						Messages: []string{fmt.Sprintf("payload build failed: %v", err)},
					}}
				}
				return nil
			}
			outcomes[i] = buildOutcome{payload: &payload}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// reconcile folds one bulk result back into the manifest and tracker,
// translating submission indices through the level and original-index maps.
func (e *Engine) reconcile(
	level hierarchy.Level,
	submitted []int,
	result *jira.BulkResult,
	uidByIndex map[int]string,
	tracker *hierarchy.Tracker,
	m *manifest.Manifest,
	toOriginal func(int) (int, error),
) error {
	for _, c := range result.Created {
		if c.Index < 0 || c.Index >= len(submitted) {
			return fmt.Errorf("bulk result: created index %d outside submission of %d", c.Index, len(submitted))
		}
		local := level[submitted[c.Index]].Index
		orig, err := toOriginal(local)
		if err != nil {
			return err
		}
		m.RecordSuccess(orig, c.Key)
		if uid, ok := uidByIndex[local]; ok {
			tracker.RecordCreation(uid, c.Key)
		}
	}

	for _, f := range result.Failed {
		if f.Index < 0 || f.Index >= len(submitted) {
			return fmt.Errorf("bulk result: failed index %d outside submission of %d", f.Index, len(submitted))
		}
		orig, err := toOriginal(level[submitted[f.Index]].Index)
		if err != nil {
			return err
		}
		m.RecordFailure(orig, &types.RowError{
			Status:   f.Status,
			Errors:   f.Errors,
			Messages: f.Messages,
		})
	}

	return nil
}

// finish persists the manifest (best effort) and assembles the summary.
func (e *Engine) finish(ctx context.Context, m *manifest.Manifest) (*Summary, error) {
	status := manifest.PutStatusStored
	if err := e.store.Put(ctx, m); err != nil {
		// A manifest write failure degrades resumability but never fails a
		// run that otherwise completed.
		e.log.WithField("run", m.ID).WithError(err).Warn("manifest write failed; retry will not be possible")
		e.metrics.StoreSkipped.Add(ctx, 1)
		status = manifest.PutStatusSkipped
	}

	e.metrics.RowsCreated.Add(ctx, int64(len(m.Succeeded)))
	e.metrics.RowsFailed.Add(ctx, int64(len(m.Failed)))

	return &Summary{
		Total:       m.Total,
		Succeeded:   len(m.Succeeded),
		Failed:      len(m.Failed),
		Manifest:    m,
		Results:     m.Results(),
		Persistence: status,
	}, nil
}
