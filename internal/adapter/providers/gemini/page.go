package gemini

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/everstacklabs/modelprice/internal/htmlutil"
	"github.com/everstacklabs/modelprice/internal/model"
)

func (g *Gemini) fetchFromPage(ctx context.Context, now time.Time) ([]model.Record, error) {
	doc, err := htmlutil.Fetch(ctx, g.client, g.pricingURL)
	if err != nil {
		return nil, err
	}

	records := parseDocument(doc, now)
	if len(records) == 0 {
		slog.Warn("gemini page scraping: no pricing data found")
	} else {
		slog.Info("gemini page scraping complete", "models_with_pricing", len(records))
	}
	return records, nil
}

// prices collects one model's paid-tier prices across its tables.
type prices struct {
	name        string
	input       *float64
	output      *float64
	cachedInput *float64
	audioInput  *float64
	audioOutput *float64
	imageInput  *float64
	imageOutput *float64
	video       *float64
	batchInput  *float64
	batchOutput *float64
}

// parseDocument groups every price table under the model heading above it.
// Several headings normalizing to the same id are merged, the first price
// seen for a field winning.
func parseDocument(doc *goquery.Document, now time.Time) []model.Record {
	var order []string
	byID := make(map[string]*prices)

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		name, batch := tableContext(table)
		if name == "" {
			return
		}
		id := normalizeModelID(name)
		p, ok := byID[id]
		if !ok {
			p = &prices{name: name}
			byID[id] = p
			order = append(order, id)
		}
		for _, row := range priceRows(table) {
			p.set(row.feature, row.price, batch)
		}
	})

	records := make([]model.Record, 0, len(order))
	for _, id := range order {
		records = append(records, byID[id].record(id, now))
	}
	return records
}

// tableContext finds the model heading a table belongs to and whether it
// holds batch prices. Sub-headings below the model heading are skipped; an
// h2 that names no model ends the search. Only the nearest heading, or the
// element right before the table, marks a batch table.
func tableContext(table *goquery.Selection) (string, bool) {
	batch := strings.Contains(strings.ToLower(table.Prev().Text()), "batch")
	nearest := true
	for s := table; s.Length() > 0; s = s.Parent() {
		var name string
		stop := false
		s.PrevAllFiltered("h2, h3, h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			text := strings.TrimSpace(h.Text())
			switch {
			case isModelName(text):
				name = text
				stop = true
			case goquery.NodeName(h) == "h2":
				stop = true
			case nearest && strings.Contains(strings.ToLower(text), "batch"):
				batch = true
			}
			nearest = false
			return !stop
		})
		if stop {
			if name == "" {
				return "", false
			}
			return name, batch
		}
	}
	return "", false
}

type priceRow struct {
	feature string
	price   float64
}

// priceRows reads (feature, paid-tier price) pairs. The paid column is the
// one whose header mentions "paid", or the last column.
func priceRows(table *goquery.Selection) []priceRow {
	var headers []string
	header := table.Find("thead tr").First()
	if header.Length() == 0 {
		header = table.Find("tr").First().FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Find("th").Length() > 1
		})
	}
	header.Find("th, td").Each(func(_ int, c *goquery.Selection) {
		headers = append(headers, strings.ToLower(strings.TrimSpace(c.Text())))
	})

	paid := -1
	for i, h := range headers {
		if strings.Contains(h, "paid") {
			paid = i
		}
	}
	if paid == -1 && len(headers) >= 2 {
		paid = len(headers) - 1
	}

	var rows []priceRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("th").Length() > 1 {
			return
		}
		var cells []string
		tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(c.Text()))
		})
		if len(cells) < 2 {
			return
		}
		cell := cells[len(cells)-1]
		if paid > 0 && paid < len(cells) {
			cell = cells[paid]
		}
		if v, ok := parsePrice(cell); ok {
			rows = append(rows, priceRow{feature: strings.ToLower(cells[0]), price: v})
		}
	})
	return rows
}

// parsePrice reads the first quoted price of a cell. Cells often list a
// second tier after a comma or line break ("$1.25, prompts <= 200k tokens").
func parsePrice(cell string) (float64, bool) {
	cell, _, _ = strings.Cut(cell, "\n")
	cell, _, _ = strings.Cut(cell, ", ")
	if !strings.Contains(cell, "$") {
		return 0, false
	}
	return htmlutil.ParsePricePerMillion(cell)
}

func (p *prices) set(feature string, v float64, batch bool) {
	has := func(s string) bool { return strings.Contains(feature, s) }
	var field **float64
	switch {
	case batch && has("input"):
		field = &p.batchInput
	case batch && has("output"):
		field = &p.batchOutput
	case batch:
		return
	case has("cached") || has("caching"):
		field = &p.cachedInput
	case has("audio") && has("input"):
		field = &p.audioInput
	case has("audio") && has("output"):
		field = &p.audioOutput
	case has("image") && has("input"):
		field = &p.imageInput
	case has("image") && has("output"):
		field = &p.imageOutput
	case has("video"):
		field = &p.video
	case has("input"):
		field = &p.input
	case has("output"):
		field = &p.output
	default:
		return
	}
	if *field == nil {
		*field = model.Float64(v)
	}
}

func (p *prices) record(id string, now time.Time) model.Record {
	caps := detectCapabilities(p.name)
	r := model.Record{
		ID:            model.NewID("google_gemini", id),
		Source:        "google_gemini",
		SourceModelID: id,
		DisplayName:   p.name,
		Pricing: model.Pricing{
			Input:       p.input,
			Output:      p.output,
			CachedInput: p.cachedInput,
			AudioInput:  p.audioInput,
			AudioOutput: p.audioOutput,
			ImageInput:  p.imageInput,
			ImageOutput: p.imageOutput,
		},
		IsOpenSource: model.Bool(isGemma(id)),
		Capabilities: caps,
		LastUpdated:  now,
	}
	if p.batchInput != nil || p.batchOutput != nil {
		r.BatchPricing = &model.BatchPricing{Input: p.batchInput, Output: p.batchOutput}
	}

	switch {
	case r.HasCapability(model.CapEmbedding):
		r.Pricing.Embedding, r.Pricing.Input = r.Pricing.Input, nil
	case r.HasCapability(model.CapImageGeneration) && r.Pricing.Output == nil:
		r.Pricing.Output = p.imageOutput
	case r.HasCapability(model.CapVideoGeneration) && r.Pricing.Output == nil:
		r.Pricing.Output = p.video
	}
	r.InputModalities, r.OutputModalities = model.DetectModalities(caps)
	return r
}
