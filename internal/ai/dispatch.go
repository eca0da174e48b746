package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ben/grant-pursuit/internal/kv"
)

// activeProviderKey is the kv setting naming the user's chosen provider.
const activeProviderKey = "settings:active_provider"

// DispatchRequest is a normalized chat-style request. ProviderOverride forces
// a specific backend for this call only; Model defaults to the provider's
// first catalog entry.
type DispatchRequest struct {
	Messages         []Message `json:"messages"`
	System           string    `json:"system,omitempty"`
	ProviderOverride string    `json:"provider,omitempty"`
	Model            string    `json:"model,omitempty"`
}

// Dispatcher routes requests to the resolved provider. Failed dispatches are
// surfaced to the caller as error values; retries are deliberately the
// caller's decision, never automatic.
type Dispatcher struct {
	Creds *CredentialResolver

	providers map[string]Provider
	store     kv.Store
}

// Provider is the single shape every backend conforms to.
type Provider interface {
	ID() string
	Call(ctx context.Context, credential, modelID string, msgs []Message, system string) (*Reply, error)
}

// NewDispatcher wires the catalog's providers over one shared HTTP client.
func NewDispatcher(store kv.Store) *Dispatcher {
	client := &http.Client{Timeout: 60 * time.Second}

	d := &Dispatcher{
		Creds:     NewCredentialResolver(store, nil),
		providers: make(map[string]Provider),
		store:     store,
	}
	d.Register(NewOpenAIProvider(client))
	d.Register(NewAnthropicProvider(client))
	d.Register(NewOllamaProvider(client))
	return d
}

func (d *Dispatcher) Register(p Provider) {
	d.providers[p.ID()] = p
}

// Dispatch resolves a provider and issues the request. Resolution order:
// explicit override, then the persisted active-provider setting, then the
// first catalog provider with a resolvable credential, then the default
// provider — which surfaces a credential-missing error itself when called
// with nothing configured.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*Reply, error) {
	cfg, err := d.resolveProvider(ctx, req.ProviderOverride)
	if err != nil {
		return nil, err
	}

	provider, ok := d.providers[cfg.ID]
	if !ok {
		return nil, fmt.Errorf("provider %s is not registered", cfg.ID)
	}

	credential, found := d.Creds.Resolve(ctx, cfg)
	if !found && !cfg.CredentialOptional {
		return nil, &CredentialMissingError{Provider: cfg.ID}
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = cfg.DefaultModel()
	}

	return provider.Call(ctx, credential, model, req.Messages, req.System)
}

// ActiveProvider reports which provider a dispatch without an override would
// use right now. Derived state, recomputed per call.
func (d *Dispatcher) ActiveProvider(ctx context.Context) ProviderConfig {
	cfg, err := d.resolveProvider(ctx, "")
	if err != nil {
		fallback, _ := CatalogFor(DefaultProviderID)
		return fallback
	}
	return cfg
}

// SetActiveProvider persists the active-provider setting.
func (d *Dispatcher) SetActiveProvider(ctx context.Context, providerID string) error {
	if _, ok := CatalogFor(providerID); !ok {
		return fmt.Errorf("unknown provider: %s", providerID)
	}
	if d.store == nil {
		return fmt.Errorf("no settings store configured")
	}
	return d.store.Set(ctx, activeProviderKey, []byte(providerID))
}

func (d *Dispatcher) resolveProvider(ctx context.Context, override string) (ProviderConfig, error) {
	if override != "" {
		cfg, ok := CatalogFor(override)
		if !ok {
			return ProviderConfig{}, fmt.Errorf("unknown provider: %s", override)
		}
		return cfg, nil
	}

	if d.store != nil {
		if raw, err := d.store.Get(ctx, activeProviderKey); err == nil {
			if cfg, ok := CatalogFor(strings.TrimSpace(string(raw))); ok {
				return cfg, nil
			}
		}
	}

	for _, cfg := range Catalog {
		if _, found := d.Creds.Resolve(ctx, cfg); found {
			return cfg, nil
		}
	}

	cfg, _ := CatalogFor(DefaultProviderID)
	return cfg, nil
}
