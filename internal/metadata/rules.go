package metadata

// FuzzyScope narrows which catalog keys a source may fuzzy-match against.
type FuzzyScope struct {
	// KeyPrefixes, when set, restricts candidates to keys starting with one of them.
	KeyPrefixes []string `mapstructure:"key_prefixes" yaml:"key_prefixes"`
	// Exclude drops keys containing any of these substrings (region or
	// commitment-qualified variants).
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// Rules is the tunable data behind catalog matching and open-source
// classification. All matching is case-insensitive.
type Rules struct {
	OpenSourcePatterns  []string `mapstructure:"open_source_patterns" yaml:"open_source_patterns"`
	ProprietaryPatterns []string `mapstructure:"proprietary_patterns" yaml:"proprietary_patterns"`

	// KeyPrefixes lists, per source, prefixes tried in order on the bare
	// model id when looking for an exact catalog key.
	KeyPrefixes map[string][]string `mapstructure:"key_prefixes" yaml:"key_prefixes"`

	FuzzyScopes map[string]FuzzyScope `mapstructure:"fuzzy_scopes" yaml:"fuzzy_scopes"`

	// StopTokens are dropped from a model id before fuzzy scoring.
	StopTokens     []string `mapstructure:"stop_tokens" yaml:"stop_tokens"`
	MinTokenLength int      `mapstructure:"min_token_length" yaml:"min_token_length"`
	MinFuzzyScore  float64  `mapstructure:"min_fuzzy_score" yaml:"min_fuzzy_score"`
	V2Bonus        float64  `mapstructure:"v2_bonus" yaml:"v2_bonus"`
	V1Bonus        float64  `mapstructure:"v1_bonus" yaml:"v1_bonus"`
	LimitsBonus    float64  `mapstructure:"limits_bonus" yaml:"limits_bonus"`
}

// DefaultRules returns the built-in matching and classification data.
func DefaultRules() Rules {
	return Rules{
		OpenSourcePatterns: []string{
			"llama", "mistral", "mixtral", "qwen", "gemma", "deepseek", "phi",
			"falcon", "vicuna", "openchat", "solar", "yi-", "internlm", "baichuan",
			"codellama", "starcoder", "wizardlm", "zephyr", "orca", "neural",
			"olmo", "mamba", "jamba", "dbrx", "command-r", "aya", "granite",
			"nemotron", "r1", "kimi", "minimax",
		},
		ProprietaryPatterns: []string{
			"gpt-4", "gpt-3.5", "o1", "o3", "claude", "gemini", "palm", "bard",
		},
		KeyPrefixes: map[string][]string{
			"aws_bedrock":      {"bedrock/", "bedrock_converse/"},
			"openai":           {"openai/"},
			"azure_openai":     {"azure/", "azure_ai/"},
			"anthropic":        {"anthropic/"},
			"google_vertex_ai": {"gemini/", "vertex_ai/"},
			"google_gemini":    {"gemini/"},
			"openrouter":       {"openrouter/"},
			"xai":              {"xai/"},
		},
		FuzzyScopes: map[string]FuzzyScope{
			"aws_bedrock": {
				KeyPrefixes: []string{"anthropic.", "amazon.", "meta.", "mistral.", "ai21.", "cohere.", "bedrock/"},
				Exclude:     []string{"/us-", "/eu-", "/ap-", "/ca-", "commitment"},
			},
		},
		StopTokens:     []string{"v1", "v2", "v3", "instruct"},
		MinTokenLength: 2,
		MinFuzzyScore:  2,
		V2Bonus:        2,
		V1Bonus:        1,
		LimitsBonus:    0.5,
	}
}

// WithDefaults fills zero-valued fields of r from DefaultRules.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.OpenSourcePatterns == nil {
		r.OpenSourcePatterns = d.OpenSourcePatterns
	}
	if r.ProprietaryPatterns == nil {
		r.ProprietaryPatterns = d.ProprietaryPatterns
	}
	if r.KeyPrefixes == nil {
		r.KeyPrefixes = d.KeyPrefixes
	}
	if r.FuzzyScopes == nil {
		r.FuzzyScopes = d.FuzzyScopes
	}
	if r.StopTokens == nil {
		r.StopTokens = d.StopTokens
	}
	if r.MinTokenLength == 0 {
		r.MinTokenLength = d.MinTokenLength
	}
	if r.MinFuzzyScore == 0 {
		r.MinFuzzyScore = d.MinFuzzyScore
	}
	if r.V2Bonus == 0 {
		r.V2Bonus = d.V2Bonus
	}
	if r.V1Bonus == 0 {
		r.V1Bonus = d.V1Bonus
	}
	if r.LimitsBonus == 0 {
		r.LimitsBonus = d.LimitsBonus
	}
	return r
}
