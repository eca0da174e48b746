package search

import (
	"embed"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all opportunity sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig defines a single searchable source.
type SourceConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Kind           string `yaml:"kind"` // "api_grants_gov", "api_json", "html_directory"
	BaseURL        string `yaml:"base_url,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	Enabled        bool   `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default: 15

	// For html_directory sources
	Selectors SelectorConfig `yaml:"selectors,omitempty"`
}

// SelectorConfig holds the CSS selectors an HTML directory source is scraped with.
type SelectorConfig struct {
	Container string `yaml:"container,omitempty"` // list item wrapper
	Title     string `yaml:"title,omitempty"`
	Link      string `yaml:"link,omitempty"`
	Issuer    string `yaml:"issuer,omitempty"`
	Amount    string `yaml:"amount,omitempty"`
	Deadline  string `yaml:"deadline,omitempty"`
	Summary   string `yaml:"summary,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml, expanding ${VAR} references
// from the environment. A filesystem path, when given, takes precedence for
// local development.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
	}
	if path == "" || err != nil {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
		if err != nil {
			return nil, fmt.Errorf("reading embedded sources.yaml: %w", err)
		}
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parsing sources.yaml: %w", err)
	}

	return &reg, nil
}

// BuildAdapters constructs an adapter per enabled source. Unknown kinds are
// an error: a typo in the registry should fail at startup, not at search time.
func BuildAdapters(reg *Registry) ([]SourceAdapter, error) {
	var adapters []SourceAdapter
	for _, cfg := range reg.Sources {
		if !cfg.Enabled {
			continue
		}

		timeout := 15 * time.Second
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		client := &http.Client{Timeout: timeout}

		switch cfg.Kind {
		case "api_grants_gov":
			adapters = append(adapters, NewGrantsGovAdapter(cfg, client))
		case "api_json":
			adapters = append(adapters, NewPortalAdapter(cfg, client))
		case "html_directory":
			adapters = append(adapters, NewDirectoryAdapter(cfg))
		default:
			return nil, fmt.Errorf("unknown source kind %q for source %q", cfg.Kind, cfg.ID)
		}
	}
	return adapters, nil
}
