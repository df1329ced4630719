package openrouter

import (
	"slices"
	"strings"

	"github.com/everstacklabs/modelprice/internal/model"
)

// Families that accept images even when the listing omits the modality.
var visionFamilies = []struct {
	match   []string
	exclude []string
}{
	{match: []string{"claude-3", "claude-4", "claude-5", "haiku-4", "sonnet-4", "opus-4"}},
	{match: []string{"gpt-4o", "gpt-4.1", "gpt-4.5", "gpt-5", "chatgpt-4o"}, exclude: []string{"realtime", "audio", "transcribe", "codex", "nano"}},
	{match: []string{"o3", "o4-mini", "o1"}, exclude: []string{"o1-mini", "o1-pro", "o3-mini"}},
	{match: []string{"gemini"}, exclude: []string{"embed"}},
	{match: []string{"llama-4", "llama4"}},
	{match: []string{"grok-3", "grok3"}},
	{match: []string{"mistral-large-3", "ministral"}},
}

var reasoningPatterns = []string{
	"o1", "o3", "o4", "gpt-5",
	"deepseek-r1", "deepseek/r1", "deepseek-v3.1", "deepseek-v3-1",
	"qwq", "-think", "thinking", "-r1",
	"claude-3.5-sonnet", "claude-3-5-sonnet", "claude-3.7", "claude-3-7",
	"claude-4", "claude-opus-4", "claude-sonnet-4", "claude-haiku-4",
	"gemini-2.5", "gemini-2-5", "grok-3", "grok3",
}

var (
	toolUseFamilies = []string{
		"gpt-4", "gpt-3.5", "gpt-5", "claude", "gemini", "mistral", "ministral",
		"llama-3", "llama-4", "llama3", "llama4", "command", "grok", "qwen", "deepseek",
		"o3", "o4", "o1",
	}
	noToolUse = []string{"o1-mini", "o1-pro", "o3-mini", "embed", "whisper", "tts"}
)

// detectCapabilities derives capability tags from listed modalities, pricing
// and supported parameters, with family heuristics for what the listing omits.
func detectCapabilities(id string, in, out []string, pricing apiPricing, params []string) []string {
	id = strings.ToLower(id)
	var caps []string

	if slices.Contains(in, "text") || slices.Contains(out, "text") || len(in) == 0 {
		caps = append(caps, model.CapText)
	}

	if slices.Contains(in, "image") || hasVisionFamily(id) {
		caps = append(caps, model.CapVision)
	}

	if slices.Contains(in, "audio") || slices.Contains(out, "audio") || strings.Contains(id, "gemini-2") {
		caps = append(caps, model.CapAudio)
	}
	if slices.Contains(out, "image") {
		caps = append(caps, model.CapImageGeneration)
	}
	if slices.Contains(in, "video") {
		caps = append(caps, model.CapVideo)
	}
	if slices.Contains(in, "file") {
		caps = append(caps, model.CapFile)
	}

	reasoning := pricing.InternalReasoning.positive() || containsAny(id, reasoningPatterns) ||
		(strings.Contains(id, "command-a") && strings.Contains(id, "reasoning")) ||
		(strings.Contains(id, "ministral") && strings.Contains(id, "reason"))
	if reasoning {
		caps = append(caps, model.CapReasoning)
	}

	if slices.Contains(params, "tools") || slices.Contains(params, "tool_choice") {
		caps = append(caps, model.CapToolUse)
	} else if len(params) == 0 && containsAny(id, toolUseFamilies) && !containsAny(id, noToolUse) {
		caps = append(caps, model.CapToolUse)
	}

	if len(caps) == 0 {
		caps = []string{model.CapText}
	}
	return caps
}

func hasVisionFamily(id string) bool {
	for _, f := range visionFamilies {
		if containsAny(id, f.match) {
			return !containsAny(id, f.exclude)
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
