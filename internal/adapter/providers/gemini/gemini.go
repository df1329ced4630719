package gemini

import (
	"context"
	_ "embed"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/httpclient"
	"github.com/everstacklabs/modelprice/internal/model"
)

// DefaultPricingURL is the Gemini API pricing page.
const DefaultPricingURL = "https://ai.google.dev/pricing"

//go:embed fallback.yaml
var fallbackData []byte

// Gemini scrapes the Gemini API pricing page. The page lists one section
// per model with a standard and a batch price table; bundled data is used
// when nothing can be scraped.
type Gemini struct {
	client     *httpclient.Client
	pricingURL string
	now        func() time.Time
}

// New creates the adapter. An empty pricingURL selects DefaultPricingURL.
func New(client *httpclient.Client, pricingURL string) *Gemini {
	if pricingURL == "" {
		pricingURL = DefaultPricingURL
	}
	return &Gemini{client: client, pricingURL: pricingURL, now: time.Now}
}

func (g *Gemini) Name() string        { return "google_gemini" }
func (g *Gemini) DisplayName() string { return "Google Gemini" }

// MinExpectedModels returns the minimum model count for Gemini.
func (g *Gemini) MinExpectedModels() int { return 5 }

func (g *Gemini) Fetch(ctx context.Context) ([]model.Record, error) {
	now := g.now().UTC()

	scraped, err := g.fetchFromPage(ctx, now)
	if err != nil {
		slog.Warn("gemini pricing page unavailable, using fallback data", "error", err)
	}
	if len(scraped) > 0 {
		return scraped, nil
	}

	records, err := adapter.LoadFallback(g.Name(), fallbackData, now)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].IsOpenSource = model.Bool(isGemma(records[i].SourceModelID))
	}
	return records, nil
}

var (
	modelPrefixes = []string{"gemini", "imagen", "veo", "gemma", "embedding"}
	notModelRe    = regexp.MustCompile(`^((input|output|cached|batch)|(price|pricing|cost|per|usd|\$)|(text|audio|video|image)\s*(input|output)|(free|paid)\s*tier|\d+[mk]?\s*(input|output|token))`)
)

// isModelName reports whether a heading names a model rather than a
// pricing section.
func isModelName(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 4 || len(s) > 80 || notModelRe.MatchString(s) {
		return false
	}
	for _, p := range modelPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

var (
	parenRe      = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	previewRe    = regexp.MustCompile(`(?i)\((preview|deprecated)\)`)
	idCharsRe    = regexp.MustCompile(`[^\w\s.-]`)
	dashesRe     = regexp.MustCompile(`-+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// normalizeModelID turns a heading like "Gemini 2.5 Flash (Preview)" into
// "gemini-2.5-flash-preview".
func normalizeModelID(name string) string {
	preview := previewRe.MatchString(name)
	id := parenRe.ReplaceAllString(strings.TrimSpace(name), " ")
	id = idCharsRe.ReplaceAllString(strings.ToLower(id), "")
	id = whitespaceRe.ReplaceAllString(strings.TrimSpace(id), "-")
	id = dashesRe.ReplaceAllString(id, "-")
	if preview && !strings.HasSuffix(id, "-preview") {
		id += "-preview"
	}
	return id
}

func isGemma(id string) bool {
	return strings.Contains(strings.ToLower(id), "gemma")
}

// detectCapabilities infers capability tags from a model name.
func detectCapabilities(name string) []string {
	name = strings.ToLower(name)

	switch {
	case strings.Contains(name, "embedding"):
		return []string{model.CapEmbedding}
	case strings.Contains(name, "imagen"):
		return []string{model.CapImageGeneration}
	case strings.Contains(name, "veo"):
		return []string{model.CapVideoGeneration}
	case strings.Contains(name, "gemma"):
		return []string{model.CapText}
	}

	caps := []string{model.CapText}
	if !strings.Contains(name, "gemini") {
		return caps
	}

	image := strings.Contains(name, "image")
	tts := strings.Contains(name, "tts")
	lite := strings.Contains(name, "lite")

	caps = append(caps, model.CapVision)
	if image {
		caps = append(caps, model.CapImageGeneration)
	}
	if tts {
		caps = append(caps, model.CapTTS)
	}
	flashOrPro := strings.Contains(name, "flash") || strings.Contains(name, "pro")
	if flashOrPro && !lite && !image && !tts {
		caps = append(caps, model.CapAudio)
	}
	if (strings.Contains(name, "2.5") || strings.Contains(name, "2-5")) && flashOrPro && !lite && !image {
		caps = append(caps, model.CapReasoning)
	}
	if strings.Contains(name, "computer") {
		caps = append(caps, "computer_use")
	}
	if !tts {
		caps = append(caps, model.CapToolUse)
	}
	return caps
}
