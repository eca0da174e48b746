// Package ai normalizes heterogeneous LLM backends behind one contract:
// provider selection, credential resolution, and uniform error surfacing.
// Callers never branch on which provider served a request except to display
// attribution.
package ai

import "fmt"

// Message is one turn of a chat-style request.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Reply is the normalized successful response from any provider.
type Reply struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// UpstreamError reports a non-success response from a provider's API. The
// message is the best one available from the upstream payload.
type UpstreamError struct {
	Provider string
	Status   int
	Msg      string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider %s: upstream status %d: %s", e.Provider, e.Status, e.Msg)
}

// MalformedResponseError reports an upstream payload that could not be parsed
// into the expected shape.
type MalformedResponseError struct {
	Provider string
	Msg      string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("provider %s: malformed response: %s", e.Provider, e.Msg)
}

// CredentialMissingError reports that no credential could be resolved for the
// selected provider. It is a soft error value, never a panic.
type CredentialMissingError struct {
	Provider string
}

func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("provider %s: credential missing (set its API key or a local override)", e.Provider)
}

// ModelConfig is one entry in a provider's model catalog.
type ModelConfig struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Tier  string `json:"tier"` // "fast" or "quality"
}

// ProviderConfig is the static identity of one backend: where its credential
// comes from and which models it offers. Loaded at process start; the active
// provider is derived at dispatch time, never stored here.
type ProviderConfig struct {
	ID                 string        `json:"id"`
	DisplayName        string        `json:"display_name"`
	CredentialKey      string        `json:"-"` // env var name, never serialized
	CredentialOptional bool          `json:"-"` // e.g. a local runtime needing only a base URL
	Models             []ModelConfig `json:"models"`
}

// DefaultModel is the model used when a request names none.
func (c ProviderConfig) DefaultModel() string {
	if len(c.Models) == 0 {
		return ""
	}
	return c.Models[0].ID
}

// Catalog lists every known provider in priority order: when no override and
// no active-provider setting exist, the first entry with a resolvable
// credential wins.
var Catalog = []ProviderConfig{
	{
		ID:            "openai",
		DisplayName:   "OpenAI",
		CredentialKey: "OPENAI_API_KEY",
		Models: []ModelConfig{
			{ID: "gpt-4o-mini", Label: "GPT-4o mini", Tier: "fast"},
			{ID: "gpt-4o", Label: "GPT-4o", Tier: "quality"},
		},
	},
	{
		ID:            "anthropic",
		DisplayName:   "Anthropic",
		CredentialKey: "ANTHROPIC_API_KEY",
		Models: []ModelConfig{
			{ID: "claude-3-5-haiku-latest", Label: "Claude 3.5 Haiku", Tier: "fast"},
			{ID: "claude-3-5-sonnet-latest", Label: "Claude 3.5 Sonnet", Tier: "quality"},
		},
	},
	{
		ID:                 "ollama",
		DisplayName:        "Ollama (local)",
		CredentialKey:      "OLLAMA_HOST",
		CredentialOptional: true,
		Models: []ModelConfig{
			{ID: "llama3.2:latest", Label: "Llama 3.2", Tier: "fast"},
			{ID: "qwen2.5:14b", Label: "Qwen 2.5 14B", Tier: "quality"},
		},
	},
}

// DefaultProviderID is the fallback when nothing resolves. Calling it without
// a credential surfaces CredentialMissingError rather than failing earlier,
// so the caller always gets one uniform error shape.
const DefaultProviderID = "openai"

// CatalogFor looks a provider's config up by id.
func CatalogFor(id string) (ProviderConfig, bool) {
	for _, cfg := range Catalog {
		if cfg.ID == id {
			return cfg, true
		}
	}
	return ProviderConfig{}, false
}
