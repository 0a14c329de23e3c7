package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/treeline-dev/treeline/internal/hierarchy"
	"github.com/treeline-dev/treeline/internal/manifest"
	"github.com/treeline-dev/treeline/internal/types"
)

// ErrManifestExpired wraps manifest.ErrNotFound with retry-specific advice.
var ErrManifestExpired = errors.New("manifest not found or expired; re-submit as a fresh run")

// Retry resumes a previous run, re-attempting only the rows its manifest
// records as failed. records must be the same original input, in the same
// order, as the run that produced the manifest.
//
// The substitution tracker is seeded from the manifest's uid map before the
// failed subset is leveled: a failed child whose parent succeeded in a prior
// attempt has no parent row in the subset, lands in level 0, and resolves
// its parent reference through the seeded map.
//
// Outcomes merge back into the original manifest by original row index; the
// returned summary spans the full original row count.
func (e *Engine) Retry(ctx context.Context, records []types.Record, manifestID string) (*Summary, error) {
	m, err := e.store.Get(ctx, manifestID)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", manifestID, ErrManifestExpired)
		}
		return nil, fmt.Errorf("load manifest %s: %w", manifestID, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("stored manifest corrupt: %w", err)
	}

	// Nothing left to do: report the stored state verbatim, no new calls
	// and no rewrite of the manifest.
	if len(m.Failed) == 0 {
		return &Summary{
			Total:       m.Total,
			Succeeded:   len(m.Succeeded),
			Failed:      0,
			Manifest:    m,
			Results:     m.Results(),
			Persistence: manifest.PutStatusUnchanged,
		}, nil
	}

	if len(records) != m.Total {
		return nil, fmt.Errorf("retry input has %d rows but manifest %s covers %d; pass the original input",
			len(records), manifestID, m.Total)
	}

	// Filter to the failed subset in original row order, keeping the
	// local->original index map.
	failed := append([]int(nil), m.Failed...)
	sort.Ints(failed)
	subset := make([]types.Record, 0, len(failed))
	toOriginal := make([]int, 0, len(failed))
	for _, orig := range failed {
		subset = append(subset, records[orig])
		toOriginal = append(toOriginal, orig)
	}

	// The failed rows may form a sub-hierarchy of their own.
	refs, err := hierarchy.DetectRefs(subset)
	if err != nil {
		return nil, err
	}
	if err := hierarchy.DetectCycle(subset, refs); err != nil {
		return nil, err
	}

	tracker := hierarchy.NewTracker()
	tracker.LoadExisting(m.UIDMap)

	levels, err := hierarchy.BuildLevels(subset, refs)
	if err != nil {
		return nil, err
	}

	e.metrics.Retries.Add(ctx, 1)
	e.log.WithFields(logrus.Fields{
		"run":    m.ID,
		"rows":   len(subset),
		"levels": len(levels),
	}).Info("retrying failed rows")

	update := manifest.New(m.ID, m.Total)
	mapIndex := func(local int) (int, error) {
		if local < 0 || local >= len(toOriginal) {
			return 0, fmt.Errorf("retry: local index %d outside failed subset of %d", local, len(toOriginal))
		}
		return toOriginal[local], nil
	}
	if err := e.executeLevels(ctx, levels, refs.ByIndex, tracker, update, mapIndex); err != nil {
		return nil, err
	}

	update.UIDMap = tracker.Mappings()
	update.Normalize()

	m.ApplyRetry(update)

	return e.finish(ctx, m)
}
