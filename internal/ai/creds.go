package ai

import (
	"context"
	"os"
	"strings"

	"github.com/ben/grant-pursuit/internal/kv"
)

const credentialKVPrefix = "credential:"

// CredentialResolver resolves a provider's credential. The environment is
// checked first, then a locally persisted override in the kv store: a local
// value can only fill in where the environment is silent.
type CredentialResolver struct {
	store  kv.Store
	lookup func(string) string
}

// NewCredentialResolver builds a resolver over an optional kv store. A nil
// lookup uses the process environment.
func NewCredentialResolver(store kv.Store, lookup func(string) string) *CredentialResolver {
	if lookup == nil {
		lookup = os.Getenv
	}
	return &CredentialResolver{store: store, lookup: lookup}
}

// Resolve returns the credential for a provider and whether one was found.
func (r *CredentialResolver) Resolve(ctx context.Context, cfg ProviderConfig) (string, bool) {
	if cfg.CredentialKey != "" {
		if v := strings.TrimSpace(r.lookup(cfg.CredentialKey)); v != "" {
			return v, true
		}
	}

	if r.store != nil {
		if raw, err := r.store.Get(ctx, credentialKVPrefix+cfg.ID); err == nil {
			if v := strings.TrimSpace(string(raw)); v != "" {
				return v, true
			}
		}
	}

	return "", false
}

// SetLocalCredential persists a provider credential override into the kv
// store. It has no effect at resolve time while an environment value exists.
func (r *CredentialResolver) SetLocalCredential(ctx context.Context, providerID, credential string) error {
	return r.store.Set(ctx, credentialKVPrefix+providerID, []byte(credential))
}
