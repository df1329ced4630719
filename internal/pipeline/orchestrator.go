package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/model"
)

// ProviderGroup is the outcome of one adapter run: its records, or the
// error that stopped it.
type ProviderGroup struct {
	Source  string
	Records []model.Record
	Err     error
	Elapsed time.Duration
}

// OK reports whether the adapter succeeded.
func (g *ProviderGroup) OK() bool { return g.Err == nil }

// Orchestrator runs source adapters. Sources are independent: one failing
// or panicking adapter never affects the others.
type Orchestrator struct {
	registry *adapter.Registry
	limit    int
}

// NewOrchestrator returns an orchestrator over registry. limit caps the
// number of adapters running at once; zero or less means no cap.
func NewOrchestrator(registry *adapter.Registry, limit int) *Orchestrator {
	return &Orchestrator{registry: registry, limit: limit}
}

// FetchAll runs every registered adapter concurrently and waits for all of
// them. The result has one group per source, successful or not.
func (o *Orchestrator) FetchAll(ctx context.Context) map[string]ProviderGroup {
	adapters := o.registry.All()
	groups := make([]ProviderGroup, len(adapters))

	var g errgroup.Group
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}
	for i, a := range adapters {
		g.Go(func() error {
			groups[i] = run(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]ProviderGroup, len(groups))
	for _, grp := range groups {
		out[grp.Source] = grp
	}
	return out
}

// FetchOne runs a single adapter. It returns *adapter.UnknownSourceError,
// without touching the network, when source is not registered; adapter
// failures are reported in the group.
func (o *Orchestrator) FetchOne(ctx context.Context, source string) (ProviderGroup, error) {
	a, err := o.registry.Get(source)
	if err != nil {
		return ProviderGroup{}, err
	}
	return run(ctx, a), nil
}

func run(ctx context.Context, a adapter.Adapter) (grp ProviderGroup) {
	name := a.Name()
	start := time.Now()
	grp.Source = name

	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter panicked", "provider", name, "panic", r, "stack", string(debug.Stack()))
			grp.Records = nil
			grp.Err = &adapter.FetchError{Source: name, Err: fmt.Errorf("panic: %v", r)}
		}
		grp.Elapsed = time.Since(start)
	}()

	records, err := a.Fetch(ctx)
	if err != nil {
		slog.Error("fetch failed", "provider", name, "error", err)
		grp.Err = &adapter.FetchError{Source: name, Err: err}
		return grp
	}
	slog.Info("fetch complete", "provider", name, "models", len(records), "elapsed", time.Since(start).Round(time.Millisecond))
	grp.Records = records
	return grp
}
