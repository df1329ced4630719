package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/modelprice/internal/model"
)

func snapshot(entries map[string]Entry) *Snapshot { return NewSnapshot(entries) }

func limits(in, out int) Entry {
	return Entry{MaxInputTokens: model.Int(in), MaxOutputTokens: model.Int(out)}
}

func TestTokenize(t *testing.T) {
	m := NewMatcher(DefaultRules())
	assert.Equal(t, []string{"claude", "3", "opus"}, m.Tokenize("claude-3-opus"))
	assert.Equal(t, []string{"anthropic", "claude", "3", "5", "sonnet", "20240620", "0"},
		m.Tokenize("anthropic.claude-3-5-sonnet-20240620-v1:0"))
	assert.Equal(t, []string{"llama", "3", "8b"}, m.Tokenize("Llama-3-8B-Instruct-v2"))
	assert.Equal(t, []string{"gpt", "5"}, m.Tokenize("gpt-5"))
}

func TestCandidateKeys(t *testing.T) {
	m := NewMatcher(DefaultRules())
	assert.Equal(t, []string{"gpt-4o", "openai/gpt-4o"}, m.CandidateKeys("openai", "gpt-4o"))
	assert.Equal(t, []string{"claude-3", "bedrock/claude-3", "bedrock_converse/claude-3"}, m.CandidateKeys("aws_bedrock", "claude-3"))
	assert.Equal(t, []string{"grok-4"}, m.CandidateKeys("unknown", "grok-4"))
}

func TestScore(t *testing.T) {
	m := NewMatcher(DefaultRules())

	tokens := m.Tokenize("claude-3-opus")
	assert.Equal(t, 2.0, m.Score(tokens, "claude-3-opus", "anthropic.claude-3-opus-v1", Entry{}))
	assert.Equal(t, 2.5, m.Score(tokens, "claude-3-opus", "anthropic.claude-3-opus-v1", limits(200000, 4096)))

	tokens = m.Tokenize("gpt-5")
	assert.Equal(t, 0.0, m.Score(tokens, "gpt-5", "embedding-ada-002", Entry{}))

	// Version agreement bonuses.
	tokens = m.Tokenize("titan-embed-text-v2")
	assert.Equal(t, 5.0, m.Score(tokens, "titan-embed-text-v2", "amazon.titan-embed-text-v2:0", Entry{}))
	tokens = m.Tokenize("titan-text-v1")
	assert.Equal(t, 3.0, m.Score(tokens, "titan-text-v1", "amazon.titan-text-v1", Entry{}))
}

func TestFind_ExactBeforeFuzzy(t *testing.T) {
	m := NewMatcher(DefaultRules())
	snap := snapshot(map[string]Entry{
		"openai/gpt-4o":     limits(128000, 16384),
		"gpt-4o-2024-08-06": limits(1, 1),
	})

	match, ok := m.Find("openai", "gpt-4o", snap)
	require.True(t, ok)
	assert.Equal(t, "openai/gpt-4o", match.Key)
	assert.False(t, match.Fuzzy)
}

func TestFind_FuzzyAccepted(t *testing.T) {
	m := NewMatcher(DefaultRules())
	snap := snapshot(map[string]Entry{
		"anthropic.claude-3-opus-v1": limits(200000, 4096),
		"embedding-ada-002":          limits(8191, 0),
	})

	match, ok := m.Find("anthropic", "claude-3-opus", snap)
	require.True(t, ok)
	assert.Equal(t, "anthropic.claude-3-opus-v1", match.Key)
	assert.True(t, match.Fuzzy)
	assert.GreaterOrEqual(t, match.Score, 2.0)
}

func TestFind_FuzzyRejected(t *testing.T) {
	m := NewMatcher(DefaultRules())
	snap := snapshot(map[string]Entry{"embedding-ada-002": limits(8191, 8191)})

	_, ok := m.Find("openai", "gpt-5", snap)
	assert.False(t, ok, "0.5 limits bonus alone is below the threshold")
}

func TestFind_TieGoesToFirstSortedKey(t *testing.T) {
	m := NewMatcher(DefaultRules())
	snap := snapshot(map[string]Entry{
		"zeta/mistral-large": limits(1000, 10),
		"alpha/mistral-large": limits(2000, 20),
	})

	match, ok := m.Find("other", "mistral-large", snap)
	require.True(t, ok)
	assert.Equal(t, "alpha/mistral-large", match.Key)
}

func TestFind_BedrockScope(t *testing.T) {
	m := NewMatcher(DefaultRules())
	snap := snapshot(map[string]Entry{
		"bedrock/us-east-1/anthropic.claude-3-haiku": limits(1, 1),
		"anthropic.claude-3-haiku-commitment":        limits(2, 2),
		"claude-3-haiku-latest":                      limits(3, 3),
		"anthropic.claude-3-haiku-20240307-v1:0":     limits(200000, 4096),
	})

	match, ok := m.Find("aws_bedrock", "claude-3-haiku-v1", snap)
	require.True(t, ok)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", match.Key)

	// Outside the bedrock scope the unprefixed key scores too.
	snap = snapshot(map[string]Entry{"claude-3-haiku-latest": limits(3, 3)})
	_, ok = m.Find("aws_bedrock", "claude-3-haiku-v1", snap)
	assert.False(t, ok)
	match, ok = m.Find("anthropic", "claude-3-haiku-v1", snap)
	require.True(t, ok)
	assert.Equal(t, "claude-3-haiku-latest", match.Key)
}

func TestFind_NilSnapshot(t *testing.T) {
	_, ok := NewMatcher(DefaultRules()).Find("openai", "gpt-4o", nil)
	assert.False(t, ok)
}
