package openai

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/everstacklabs/modelprice/internal/htmlutil"
	"github.com/everstacklabs/modelprice/internal/model"
)

// fetchFromDocs scrapes the pricing page tables.
// The page is partly JS-rendered, so an empty result is not an error.
func (o *OpenAI) fetchFromDocs(ctx context.Context, now time.Time) ([]model.Record, error) {
	doc, err := htmlutil.Fetch(ctx, o.client, o.pricingURL)
	if err != nil {
		return nil, err
	}

	records := parseDocument(doc, now)
	if len(records) == 0 {
		slog.Warn("openai docs scraping: no pricing data found (page may be JS-rendered)")
	} else {
		slog.Info("openai docs scraping complete", "models_with_pricing", len(records))
	}
	return records, nil
}

// parseDocument turns every pricing table into records. A model listed in
// several standard tables keeps the first entry unless a later one has
// both input and output prices and the first does not. Tables under a
// "Batch" heading only contribute batch_pricing to models found elsewhere.
func parseDocument(doc *goquery.Document, now time.Time) []model.Record {
	var records []model.Record
	index := make(map[string]int)
	batch := make(map[string]model.Pricing)

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		category := sectionHeading(table)
		isBatch := strings.Contains(strings.ToLower(category), "batch")
		for _, row := range htmlutil.Rows(table) {
			r := parsePricingRow(row, category, now)
			if r == nil {
				continue
			}
			if isBatch {
				if _, ok := batch[r.SourceModelID]; !ok {
					batch[r.SourceModelID] = r.Pricing
				}
				continue
			}
			i, seen := index[r.SourceModelID]
			switch {
			case !seen:
				index[r.SourceModelID] = len(records)
				records = append(records, *r)
			case !hasInputOutput(records[i].Pricing) && hasInputOutput(r.Pricing):
				records[i] = *r
			}
		}
	})

	for i := range records {
		if p, ok := batch[records[i].SourceModelID]; ok && (p.Input != nil || p.Output != nil) {
			records[i].BatchPricing = &model.BatchPricing{Input: p.Input, Output: p.Output}
		}
	}
	return records
}

func hasInputOutput(p model.Pricing) bool {
	return p.Input != nil && p.Output != nil
}

// sectionHeading returns the nearest heading above a table.
func sectionHeading(table *goquery.Selection) string {
	for s := table; s.Length() > 0; s = s.Parent() {
		if h := s.PrevAllFiltered("h1, h2, h3, h4").First(); h.Length() > 0 {
			return strings.TrimSpace(h.Text())
		}
	}
	return ""
}

// parsePricingRow attempts to extract a priced model from a table row.
func parsePricingRow(row map[string]string, category string, now time.Time) *model.Record {
	id := normalizeModelID(firstNonEmpty(row, "model", "name", "model name"))
	if !isValidModelID(id) || isDateSnapshot(id) {
		return nil
	}

	var pricing model.Pricing
	if v, ok := htmlutil.ParsePricePerMillion(firstNonEmpty(row, "input", "input price", "input cost", "prompt")); ok {
		pricing.Input = model.Float64(v)
	}
	if v, ok := htmlutil.ParsePricePerMillion(firstNonEmpty(row, "output", "output price", "output cost", "completion")); ok {
		pricing.Output = model.Float64(v)
	}
	if v, ok := htmlutil.ParsePricePerMillion(firstNonEmpty(row, "cached input", "cached input price")); ok {
		pricing.CachedInput = model.Float64(v)
	}
	if v, ok := htmlutil.ParsePricePerMillion(firstNonEmpty(row, "cost", "price")); ok && pricing.Input == nil {
		if strings.Contains(id, "embed") {
			pricing.Embedding = model.Float64(v)
		} else {
			pricing.Input = model.Float64(v)
		}
	}
	if pricing.Input == nil && pricing.Output == nil && pricing.Embedding == nil {
		return nil
	}

	caps := detectCapabilities(id, category)
	r := &model.Record{
		ID:            model.NewID("openai", id),
		Source:        "openai",
		SourceModelID: id,
		DisplayName:   inferDisplayName(id),
		Pricing:       pricing,
		Capabilities:  caps,
		LastUpdated:   now,
	}
	if n, ok := htmlutil.ParseTokenCount(firstNonEmpty(row, "context", "context window", "context length")); ok {
		r.ContextLength = model.Int(n)
	}
	r.InputModalities, r.OutputModalities = model.DetectModalities(caps)
	return r
}

var (
	footnoteRe = regexp.MustCompile(`\[\d+\]`)
	modelIDRe  = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]*$`)

	knownPrefixes = []string{"gpt", "o1", "o3", "o4", "chatgpt", "whisper", "dall-e", "tts", "text-embedding", "codex", "computer-use", "omni"}
)

// normalizeModelID takes the first word of a model cell, which on the
// pricing page is the alias followed by its dated snapshot.
func normalizeModelID(cell string) string {
	cell = footnoteRe.ReplaceAllString(cell, " ")
	fields := strings.Fields(strings.ToLower(cell))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func isValidModelID(id string) bool {
	if len(id) < 2 || len(id) > 50 || !modelIDRe.MatchString(id) {
		return false
	}
	for _, p := range knownPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
