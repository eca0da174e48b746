// Package kv is the persistence collaborator for the core: a flat get/set/delete
// bag of byte values keyed by stable strings. The only guarantee any
// implementation makes is single-key atomicity; there are no transactions.
package kv

import (
	"context"
	"errors"
)

var ErrNoKey = errors.New("kv: key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every entry whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}
