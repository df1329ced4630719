package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/everstacklabs/modelprice/internal/httpclient"
	"github.com/everstacklabs/modelprice/internal/model"
)

// DefaultBaseURL is the public OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouter fetches pricing from the public OpenRouter models listing.
type OpenRouter struct {
	baseURL string
	client  *httpclient.Client
	now     func() time.Time
}

// New creates the adapter. An empty baseURL selects DefaultBaseURL.
func New(client *httpclient.Client, baseURL string) *OpenRouter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenRouter{baseURL: strings.TrimRight(baseURL, "/"), client: client, now: time.Now}
}

func (o *OpenRouter) Name() string        { return "openrouter" }
func (o *OpenRouter) DisplayName() string { return "OpenRouter" }

// MinExpectedModels returns the minimum model count for OpenRouter.
func (o *OpenRouter) MinExpectedModels() int { return 50 }

// /api/v1/models response types.
type modelsResponse struct {
	Data []apiModel `json:"data"`
}

type apiModel struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	ContextLength       *int         `json:"context_length"`
	Architecture        architecture `json:"architecture"`
	InputModalities     []string     `json:"input_modalities"`
	OutputModalities    []string     `json:"output_modalities"`
	Pricing             apiPricing   `json:"pricing"`
	TopProvider         topProvider  `json:"top_provider"`
	SupportedParameters []string     `json:"supported_parameters"`
}

type architecture struct {
	InputModalities  []string `json:"input_modalities"`
	OutputModalities []string `json:"output_modalities"`
}

type topProvider struct {
	MaxCompletionTokens *int `json:"max_completion_tokens"`
}

type apiPricing struct {
	Prompt            price `json:"prompt"`
	Completion        price `json:"completion"`
	InputCacheRead    price `json:"input_cache_read"`
	InputCacheWrite   price `json:"input_cache_write"`
	InternalReasoning price `json:"internal_reasoning"`
	Image             price `json:"image"`
	Audio             price `json:"audio"`
}

// price is a per-token USD price that the API sends as a string or a number.
type price struct {
	v *float64
}

func (p *price) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable prices are unknown, not fatal.
		return nil
	}
	p.v = &f
	return nil
}

// perMillion converts to USD per million tokens. Negative values mark
// variable pricing and become unknown.
func (p price) perMillion() *float64 {
	if p.v == nil || *p.v < 0 {
		return nil
	}
	if *p.v == 0 {
		return model.Float64(0)
	}
	return model.Float64(*p.v * 1_000_000)
}

func (p price) positive() bool {
	return p.v != nil && *p.v > 0
}

func (o *OpenRouter) Fetch(ctx context.Context) ([]model.Record, error) {
	resp, err := o.client.Get(ctx, o.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}

	var modelsResp modelsResponse
	if err := json.Unmarshal(resp.Body, &modelsResp); err != nil {
		return nil, fmt.Errorf("parsing models response: %w", err)
	}

	now := o.now().UTC()
	records := make([]model.Record, 0, len(modelsResp.Data))
	index := make(map[string]int, len(modelsResp.Data))
	for _, am := range modelsResp.Data {
		r := toRecord(am, now)
		if r == nil {
			continue
		}
		// Later duplicates replace earlier ones in place.
		if i, ok := index[r.ID]; ok {
			records[i] = *r
			continue
		}
		index[r.ID] = len(records)
		records = append(records, *r)
	}

	slog.Info("openrouter fetch complete", "api_models", len(modelsResp.Data), "models", len(records))
	return records, nil
}

func toRecord(am apiModel, now time.Time) *model.Record {
	if am.ID == "" {
		return nil
	}

	name := am.Name
	if name == "" {
		name = am.ID
	}

	inMods := am.Architecture.InputModalities
	if len(inMods) == 0 {
		inMods = am.InputModalities
	}
	outMods := am.Architecture.OutputModalities
	if len(outMods) == 0 {
		outMods = am.OutputModalities
	}

	caps := detectCapabilities(am.ID, inMods, outMods, am.Pricing, am.SupportedParameters)

	detectedIn, detectedOut := model.DetectModalities(caps)
	if len(inMods) == 0 {
		inMods = detectedIn
	}
	if len(outMods) == 0 {
		outMods = detectedOut
	}

	return &model.Record{
		ID:            model.NewID("openrouter", am.ID),
		Source:        "openrouter",
		SourceModelID: am.ID,
		DisplayName:   name,
		Pricing: model.Pricing{
			Input:       am.Pricing.Prompt.perMillion(),
			Output:      am.Pricing.Completion.perMillion(),
			CachedInput: am.Pricing.InputCacheRead.perMillion(),
			CachedWrite: am.Pricing.InputCacheWrite.perMillion(),
			Reasoning:   am.Pricing.InternalReasoning.perMillion(),
			ImageInput:  am.Pricing.Image.perMillion(),
			AudioInput:  am.Pricing.Audio.perMillion(),
		},
		ContextLength:    am.ContextLength,
		MaxOutputTokens:  am.TopProvider.MaxCompletionTokens,
		Capabilities:     caps,
		InputModalities:  model.MergeModalities(nil, inMods),
		OutputModalities: model.MergeModalities(nil, outMods),
		LastUpdated:      now,
	}
}
