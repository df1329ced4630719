// Package pipeline runs the refresh workflow: fetch every source, validate
// and enrich each successful batch, persist it per source, and optionally
// publish the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/diff"
	"github.com/everstacklabs/modelprice/internal/metadata"
	"github.com/everstacklabs/modelprice/internal/model"
	"github.com/everstacklabs/modelprice/internal/storage"
	"github.com/everstacklabs/modelprice/internal/validate"
)

// Status is the overall outcome of a refresh.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Summary reports one refresh run.
type Summary struct {
	RunID          string                 `json:"run_id"`
	Status         Status                 `json:"status"`
	Provider       string                 `json:"provider,omitempty"`
	ModelsCount    int                    `json:"models_count"`
	Providers      map[string]int         `json:"providers"`
	Failed         map[string]string      `json:"failed,omitempty"`
	Changes        map[string]diff.Counts `json:"changes"`
	ElapsedSeconds float64                `json:"elapsed_seconds"`
	Timestamp      time.Time              `json:"timestamp"`
	Published      *PublishResult         `json:"published,omitempty"`
}

// OverrideEditor persists user overrides.
type OverrideEditor interface {
	Apply(key string, patch []byte) (metadata.Metadata, error)
}

// Options tunes a Pipeline. The zero value is usable.
type Options struct {
	// Concurrency caps concurrently running adapters; zero means no cap.
	Concurrency int
	Diff        diff.Options
	// Publisher, when set, receives every refresh that changed something.
	Publisher Publisher
}

// Pipeline orchestrates the full refresh workflow.
type Pipeline struct {
	registry  *adapter.Registry
	orch      *Orchestrator
	store     storage.Store
	enricher  *metadata.Enricher
	overrides OverrideEditor
	publisher Publisher
	diffOpts  diff.Options
	now       func() time.Time
}

// New creates a Pipeline. overrides may be nil, which disables UpdateModel.
func New(registry *adapter.Registry, store storage.Store, enricher *metadata.Enricher, overrides OverrideEditor, opts Options) *Pipeline {
	return &Pipeline{
		registry:  registry,
		orch:      NewOrchestrator(registry, opts.Concurrency),
		store:     store,
		enricher:  enricher,
		overrides: overrides,
		publisher: opts.Publisher,
		diffOpts:  opts.Diff,
		now:       time.Now,
	}
}

// Orchestrator exposes the fetch orchestrator, for fetch-only callers.
func (p *Pipeline) Orchestrator() *Orchestrator { return p.orch }

func (p *Pipeline) newSummary() *Summary {
	return &Summary{
		RunID:     uuid.NewString(),
		Providers: map[string]int{},
		Changes:   map[string]diff.Counts{},
	}
}

func (p *Pipeline) finish(s *Summary, start time.Time) {
	s.ElapsedSeconds = time.Since(start).Seconds()
	s.Timestamp = p.now()
}

// RefreshAll fetches every source concurrently and persists each
// successful source independently. A failed source keeps its previously
// persisted records. Only storage errors that prevent any progress are
// returned; per-source failures are reported in the summary.
func (p *Pipeline) RefreshAll(ctx context.Context) (*Summary, error) {
	start := time.Now()
	slog.Info("starting full refresh", "providers", p.registry.Len())

	groups := p.orch.FetchAll(ctx)
	// One catalog attempt per run, shared by every source.
	snap := p.enricher.Catalog(ctx)

	prior, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading database: %w", err)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	sum := p.newSummary()
	var changesets []*diff.ChangeSet
	for _, name := range names {
		grp := groups[name]
		if !grp.OK() {
			sum.failed(name, grp.Err)
			continue
		}
		cs, n, err := p.persist(ctx, name, grp.Records, prior.Models, snap)
		if err != nil {
			slog.Error("saving provider failed", "provider", name, "error", err)
			sum.failed(name, err)
			continue
		}
		sum.Providers[name] = n
		sum.ModelsCount += n
		sum.Changes[name] = cs.Counts()
		changesets = append(changesets, cs)
	}

	switch {
	case len(sum.Failed) == 0:
		sum.Status = StatusOK
	case len(sum.Providers) == 0:
		sum.Status = StatusFailed
	default:
		sum.Status = StatusPartial
	}

	p.publish(ctx, sum, changesets)
	p.finish(sum, start)
	slog.Info("refresh complete",
		"run_id", sum.RunID,
		"status", sum.Status,
		"models", sum.ModelsCount,
		"failed", len(sum.Failed),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return sum, nil
}

// RefreshOne refreshes a single source. It returns *adapter.UnknownSourceError
// for an unregistered source and *adapter.FetchError when the adapter fails;
// in both cases persisted data is untouched.
func (p *Pipeline) RefreshOne(ctx context.Context, source string) (*Summary, error) {
	start := time.Now()
	grp, err := p.orch.FetchOne(ctx, source)
	if err != nil {
		return nil, err
	}
	if !grp.OK() {
		return nil, grp.Err
	}

	prior, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading database: %w", err)
	}
	cs, n, err := p.persist(ctx, source, grp.Records, prior.Models, p.enricher.Catalog(ctx))
	if err != nil {
		return nil, err
	}

	sum := p.newSummary()
	sum.Status = StatusOK
	sum.Provider = source
	sum.ModelsCount = n
	sum.Providers[source] = n
	sum.Changes[source] = cs.Counts()
	p.publish(ctx, sum, []*diff.ChangeSet{cs})
	p.finish(sum, start)
	slog.Info("provider refreshed", "provider", source, "models", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return sum, nil
}

// persist validates, enriches and stores one source's batch.
func (p *Pipeline) persist(ctx context.Context, source string, records, prior []model.Record, snap *metadata.Snapshot) (*diff.ChangeSet, int, error) {
	minExpected := 0
	if a, err := p.registry.Get(source); err == nil {
		if hc, ok := a.(adapter.HealthChecker); ok {
			minExpected = hc.MinExpectedModels()
		}
	}

	kept, res := validate.Sanitize(source, records, minExpected)
	for _, issue := range res.Errors() {
		slog.Warn("dropping invalid model", "provider", source, "issue", issue.String())
	}
	for _, issue := range res.Warnings() {
		slog.Debug("validation warning", "provider", source, "issue", issue.String())
	}

	kept = p.enricher.EnrichWith(kept, snap)
	cs := diff.Compute(source, kept, prior, p.diffOpts)

	if err := p.store.UpsertSource(ctx, source, kept); err != nil {
		return nil, 0, fmt.Errorf("saving %s: %w", source, err)
	}
	return cs, len(kept), nil
}

func (p *Pipeline) publish(ctx context.Context, sum *Summary, changesets []*diff.ChangeSet) {
	if p.publisher == nil {
		return
	}
	changed := false
	for _, cs := range changesets {
		if cs.HasChanges() {
			changed = true
			break
		}
	}
	if !changed {
		return
	}
	res, err := p.publisher.Publish(ctx, changesets)
	if err != nil {
		slog.Error("publishing refresh failed", "run_id", sum.RunID, "error", err)
		return
	}
	sum.Published = res
}

// RefreshMetadata drops the cached external catalog and re-resolves the
// metadata of every persisted record, source by source. Each source is
// re-read and rewritten under the store's write lock, so a refresh that
// lands meanwhile is never reverted. It returns how many records changed.
func (p *Pipeline) RefreshMetadata(ctx context.Context) (int, error) {
	p.enricher.InvalidateCatalog()
	snap := p.enricher.Catalog(ctx)

	db, err := p.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading database: %w", err)
	}
	var order []string
	seen := make(map[string]bool)
	for _, r := range db.Models {
		if !seen[r.Source] {
			seen[r.Source] = true
			order = append(order, r.Source)
		}
	}

	updated := 0
	for _, source := range order {
		changed := 0
		err := p.store.ModifySource(ctx, source, func(current []model.Record) ([]model.Record, error) {
			before := make([]model.Record, len(current))
			copy(before, current)

			enriched := p.enricher.EnrichWith(current, snap)
			cs := diff.Compute(source, enriched, before, p.diffOpts)
			if !cs.HasChanges() {
				return nil, storage.ErrNoChange
			}
			changed = len(cs.Updated)
			return enriched, nil
		})
		if err != nil {
			return updated, fmt.Errorf("saving %s: %w", source, err)
		}
		updated += changed
	}
	slog.Info("metadata refreshed", "models_updated", updated)
	return updated, nil
}

// ErrOverridesDisabled is returned by UpdateModel when no override store is configured.
var ErrOverridesDisabled = errors.New("user overrides are not configured")

// UpdateModel applies a JSON merge patch to the user override of record id,
// then re-resolves and persists that record. It returns
// storage.ErrNotFound for an unknown id and *metadata.ValidationError for
// an invalid patch.
func (p *Pipeline) UpdateModel(ctx context.Context, id string, patch []byte) (model.Record, error) {
	if p.overrides == nil {
		return model.Record{}, ErrOverridesDisabled
	}
	if _, err := p.store.Get(ctx, id); err != nil {
		return model.Record{}, err
	}
	if _, err := p.overrides.Apply(id, patch); err != nil {
		return model.Record{}, err
	}

	// Fetched before taking the write lock; resolving inside it is local only.
	snap := p.enricher.Catalog(ctx)

	var updated model.Record
	err := p.store.UpdateRecord(ctx, id, func(r *model.Record) error {
		metadata.Apply(r, p.enricher.ResolveWith(r, snap))
		updated = *r
		return nil
	})
	if err != nil {
		return model.Record{}, err
	}
	slog.Info("updated model", "id", id)
	return updated, nil
}

func (s *Summary) failed(source string, err error) {
	if s.Failed == nil {
		s.Failed = map[string]string{}
	}
	s.Failed[source] = err.Error()
}
