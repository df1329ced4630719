package openai

import (
	"context"
	_ "embed"
	"log/slog"
	"strings"
	"time"

	"github.com/everstacklabs/modelprice/internal/adapter"
	"github.com/everstacklabs/modelprice/internal/httpclient"
	"github.com/everstacklabs/modelprice/internal/model"
)

// DefaultPricingURL is the official pricing page.
const DefaultPricingURL = "https://platform.openai.com/docs/pricing"

//go:embed fallback.yaml
var fallbackData []byte

// OpenAI scrapes the OpenAI pricing page, falling back to bundled data
// when the page yields nothing usable.
type OpenAI struct {
	client     *httpclient.Client
	pricingURL string
	now        func() time.Time
}

// New creates the adapter. An empty pricingURL selects DefaultPricingURL.
func New(client *httpclient.Client, pricingURL string) *OpenAI {
	if pricingURL == "" {
		pricingURL = DefaultPricingURL
	}
	return &OpenAI{client: client, pricingURL: pricingURL, now: time.Now}
}

func (o *OpenAI) Name() string        { return "openai" }
func (o *OpenAI) DisplayName() string { return "OpenAI" }

// MinExpectedModels returns the minimum model count for OpenAI.
func (o *OpenAI) MinExpectedModels() int { return 10 }

func (o *OpenAI) Fetch(ctx context.Context) ([]model.Record, error) {
	now := o.now().UTC()

	scraped, err := o.fetchFromDocs(ctx, now)
	if err != nil {
		slog.Warn("openai pricing page unavailable, using fallback data", "error", err)
	}
	if len(scraped) > 0 {
		return scraped, nil
	}

	return adapter.LoadFallback(o.Name(), fallbackData, now)
}

var (
	visionModels   = []string{"gpt-4o", "gpt-4.1", "gpt-4.5", "gpt-5", "o3", "o4-mini", "o1"}
	noVision       = []string{"realtime", "audio", "o1-mini", "o1-pro", "o3-mini", "gpt-5-nano", "codex"}
	reasoningModel = []string{"o1", "o3", "o4", "gpt-5"}
	toolUseModels  = []string{"gpt-5", "gpt-4", "gpt-3.5", "chatgpt", "o3", "o4", "o1"}
	noToolUse      = []string{"o1-mini", "o1-pro", "o3-mini", "transcribe", "whisper", "tts", "embed"}
)

// detectCapabilities infers capability tags from a model id and the
// pricing-page section it was listed under.
func detectCapabilities(id, category string) []string {
	id = strings.ToLower(id)
	category = strings.ToLower(category)

	switch {
	case strings.Contains(category, "image generation") || strings.Contains(id, "dall-e") || strings.Contains(id, "gpt-image"):
		return []string{model.CapImageGeneration}
	case strings.Contains(category, "embedding") || strings.Contains(id, "embed"):
		return []string{model.CapEmbedding}
	case strings.Contains(id, "transcribe") || strings.Contains(id, "whisper"):
		return []string{model.CapAudio}
	case strings.Contains(id, "tts"):
		return []string{model.CapTTS}
	case strings.Contains(id, "moderation"):
		return []string{"moderation"}
	}

	caps := []string{model.CapText}

	if strings.Contains(category, "audio") || strings.Contains(category, "speech") || strings.Contains(id, "realtime") {
		caps = append(caps, model.CapAudio)
	}
	if containsAny(id, visionModels) && !containsAny(id, noVision) {
		caps = append(caps, model.CapVision)
	}
	if containsAny(id, reasoningModel) {
		caps = append(caps, model.CapReasoning)
	}
	if containsAny(id, toolUseModels) && !containsAny(id, noToolUse) {
		caps = append(caps, model.CapToolUse)
	}
	if strings.Contains(id, "search") {
		caps = append(caps, "web_search")
	}

	return caps
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isDateSnapshot(id string) bool {
	// Pattern: any segment that looks like a date (MMDD or YYYYMMDD)
	// e.g., gpt-4-0613, gpt-4-1106-preview, gpt-4o-2024-05-13, gpt-5-2025-08-07
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts[1:] {
		if isDateLike(p) {
			return true
		}
	}
	for i := 1; i+2 < len(parts); i++ {
		if len(parts[i]) == 4 && len(parts[i+1]) == 2 && len(parts[i+2]) == 2 &&
			isAllDigits(parts[i]) && isAllDigits(parts[i+1]) && isAllDigits(parts[i+2]) {
			return true
		}
	}
	return false
}

func isDateLike(s string) bool {
	if len(s) != 4 && len(s) != 8 {
		return false
	}
	return isAllDigits(s)
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

var displayOverrides = map[string]string{
	"gpt-4o":                 "GPT-4o",
	"gpt-4o-mini":            "GPT-4o Mini",
	"gpt-4-turbo":            "GPT-4 Turbo",
	"gpt-3.5-turbo":          "GPT-3.5 Turbo",
	"gpt-4.1":                "GPT-4.1",
	"gpt-4.1-mini":           "GPT-4.1 Mini",
	"gpt-4.1-nano":           "GPT-4.1 Nano",
	"gpt-5":                  "GPT-5",
	"gpt-5-mini":             "GPT-5 Mini",
	"gpt-5-nano":             "GPT-5 Nano",
	"o1":                     "O1",
	"o3":                     "O3",
	"o3-mini":                "O3 Mini",
	"o4-mini":                "O4 Mini",
	"text-embedding-3-small": "Text Embedding 3 Small",
	"text-embedding-3-large": "Text Embedding 3 Large",
}

func inferDisplayName(id string) string {
	if name, ok := displayOverrides[id]; ok {
		return name
	}

	// Fallback: capitalize segments
	parts := strings.Split(id, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
