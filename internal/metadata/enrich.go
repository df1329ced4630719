package metadata

import (
	"context"
	"errors"
	"log/slog"

	"github.com/everstacklabs/modelprice/internal/model"
)

// Enricher fills record metadata from the static, external and override
// tiers. It holds no per-call state and may be used concurrently.
type Enricher struct {
	static     Tier
	catalog    CatalogSource
	overrides  Tier
	matcher    *Matcher
	classifier *Classifier
}

// NewEnricher builds an enricher. Any tier may be nil.
func NewEnricher(static Tier, catalog CatalogSource, overrides Tier, rules Rules) *Enricher {
	rules = rules.WithDefaults()
	return &Enricher{
		static:     static,
		catalog:    catalog,
		overrides:  overrides,
		matcher:    NewMatcher(rules),
		classifier: NewClassifier(rules),
	}
}

// Enrich resolves metadata for every record in place and returns the same
// slice. An unavailable catalog degrades to "no external match".
func (e *Enricher) Enrich(ctx context.Context, records []model.Record) []model.Record {
	return e.EnrichWith(records, e.Catalog(ctx))
}

// EnrichWith is Enrich against a catalog snapshot the caller already holds.
// It performs no network I/O; a nil snap means no external tier.
func (e *Enricher) EnrichWith(records []model.Record, snap *Snapshot) []model.Record {
	for i := range records {
		Apply(&records[i], e.resolve(&records[i], snap))
	}
	slog.Debug("metadata enrichment complete", "models", len(records), "catalog", snap != nil)
	return records
}

// Resolve returns the merged metadata for r without modifying it.
func (e *Enricher) Resolve(ctx context.Context, r *model.Record) Metadata {
	return e.resolve(r, e.Catalog(ctx))
}

// ResolveWith is Resolve against a catalog snapshot the caller already holds.
func (e *Enricher) ResolveWith(r *model.Record, snap *Snapshot) Metadata {
	return e.resolve(r, snap)
}

// InvalidateCatalog drops the cached external catalog.
func (e *Enricher) InvalidateCatalog() {
	if e.catalog != nil {
		e.catalog.Invalidate()
	}
}

// Catalog returns the external catalog, fetching it if needed, or nil when
// it is unavailable. The failure is logged, not returned.
func (e *Enricher) Catalog(ctx context.Context) *Snapshot {
	if e.catalog == nil {
		return nil
	}
	snap, err := e.catalog.Snapshot(ctx)
	if err != nil {
		var unavailable *CatalogUnavailableError
		if errors.As(err, &unavailable) {
			slog.Warn("external metadata unavailable, continuing without it", "url", unavailable.URL, "error", unavailable.Err)
		} else {
			slog.Warn("external metadata unavailable, continuing without it", "error", err)
		}
		return nil
	}
	return snap
}

// resolve merges, highest priority first: user override, external catalog,
// static tier, values the adapter set, and finally the name classifier for
// open-source status.
func (e *Enricher) resolve(r *model.Record, snap *Snapshot) Metadata {
	key := r.Key()

	var static, override Metadata
	if e.static != nil {
		static, _ = e.static.Lookup(key)
	}
	if e.overrides != nil {
		override, _ = e.overrides.Lookup(key)
	}

	var external Metadata
	if match, ok := e.matcher.Find(r.Source, r.SourceModelID, snap); ok {
		external = match.Entry.Metadata()
		slog.Debug("catalog match", "model", key, "catalog_key", match.Key, "fuzzy", match.Fuzzy, "score", match.Score)
	}

	resolved := Merge(external, static, FromRecord(r))
	if resolved.IsOpenSource == nil {
		resolved.IsOpenSource = e.classifier.IsOpenSource(r.DisplayName)
	}
	return Merge(override, resolved)
}
