package model

// Capability tags produced by adapters.
const (
	CapText            = "text"
	CapVision          = "vision"
	CapAudio           = "audio"
	CapVideo           = "video"
	CapFile            = "file"
	CapEmbedding       = "embedding"
	CapImageGeneration = "image_generation"
	CapVideoGeneration = "video_generation"
	CapTTS             = "tts"
	CapReasoning       = "reasoning"
	CapToolUse         = "tool_use"
)

var (
	inputOrder  = []string{"text", "image", "audio", "video", "file"}
	outputOrder = []string{"text", "image", "audio", "video", "embedding"}
)

// DetectModalities derives input and output modality lists from capability tags.
// Both lists come back ordered and de-duplicated.
func DetectModalities(capabilities []string) (input, output []string) {
	in := make(map[string]bool)
	out := make(map[string]bool)

	for _, c := range capabilities {
		switch c {
		case CapText:
			in["text"] = true
			out["text"] = true
		case CapVision:
			in["image"] = true
		case CapAudio:
			in["audio"] = true
			out["audio"] = true
		case CapVideo:
			in["video"] = true
		case CapFile:
			in["file"] = true
		case CapEmbedding:
			in["text"] = true
			out["embedding"] = true
		case CapImageGeneration:
			in["text"] = true
			out["image"] = true
		case CapVideoGeneration:
			in["text"] = true
			out["video"] = true
		case CapTTS:
			in["text"] = true
			out["audio"] = true
		}
	}

	if len(in) == 0 {
		in["text"] = true
	}
	if len(out) == 0 {
		out["text"] = true
	}

	return ordered(in, inputOrder), ordered(out, outputOrder)
}

// MergeModalities appends tags from extra that are not already in base, keeping base order.
func MergeModalities(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	merged := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, m := range list {
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			merged = append(merged, m)
		}
	}
	return merged
}

func ordered(set map[string]bool, order []string) []string {
	result := make([]string, 0, len(set))
	for _, m := range order {
		if set[m] {
			result = append(result, m)
		}
	}
	return result
}
