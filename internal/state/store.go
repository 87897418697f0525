package state

import "context"

// Store is the local key/value state shared by the nonce sequence and agent
// records. Keys are namespaced by prefix, e.g. "exchange:nonce:" and
// "agent:last:".
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// List returns every entry whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string]string, error)
	Close() error
}
