package llm

import "strings"

// ModelCapabilities describes the limits of one model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input plus output.
	ContextWindow int

	// MaxOutputTokens caps a single completion.
	MaxOutputTokens int

	// SupportsJSONMode is set when the backend API can be forced to emit a
	// single JSON object.
	SupportsJSONMode bool
}

// DefaultCapabilities apply to models missing from the known families.
var DefaultCapabilities = ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}

type family struct {
	prefix string
	caps   ModelCapabilities
}

// families is matched in order, so narrower prefixes come first. The JSON
// flag reflects the OpenAI-compatible response_format parameter.
var families = []family{
	{"gpt-4o", ModelCapabilities{128_000, 16_384, true}},
	{"gpt-4.1", ModelCapabilities{1_047_576, 32_768, true}},
	{"gpt-4-turbo", ModelCapabilities{128_000, 4_096, true}},
	{"gpt-4", ModelCapabilities{8_192, 4_096, false}},
	{"gpt-3.5-turbo", ModelCapabilities{16_385, 4_096, true}},
	{"o1-mini", ModelCapabilities{128_000, 65_536, false}},
	{"o1", ModelCapabilities{200_000, 100_000, true}},
	{"o3", ModelCapabilities{200_000, 100_000, true}},
	{"claude-3-opus", ModelCapabilities{200_000, 4_096, false}},
	{"claude", ModelCapabilities{200_000, 8_192, false}},
	{"gemini-1.5-pro", ModelCapabilities{2_097_152, 8_192, false}},
	{"gemini", ModelCapabilities{1_048_576, 8_192, false}},
	{"deepseek", ModelCapabilities{64_000, 8_192, true}},
	{"qwen", ModelCapabilities{32_768, 8_192, true}},
	{"glm", ModelCapabilities{128_000, 4_096, true}},
}

// LookupCapabilities returns the limits of model, matched case-insensitively
// by family prefix. Ollama style tags ("qwen2.5:14b") and vendor paths
// ("deepseek-ai/deepseek-chat") are reduced to the bare model name first.
func LookupCapabilities(model string) ModelCapabilities {
	name := strings.ToLower(model)
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	for _, f := range families {
		if strings.HasPrefix(name, f.prefix) {
			return f.caps
		}
	}
	return DefaultCapabilities
}
