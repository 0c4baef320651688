// Package cache provides caching of expensive cargo invocations.
//
// Two kinds of data are cached between runs:
//   - cargo metadata snapshots, keyed by manifest path and content hash
//   - cargo check diagnostics, keyed by the fused output's content hash
//
// The challenge graph itself is never cached; it is rebuilt on every run.
// Caching only short-circuits the external toolchain calls whose inputs
// have not changed.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is the default lifetime of a cache entry.
// Metadata for an unchanged manifest rarely goes stale, but toolchain
// upgrades can alter it, so entries expire after a week.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is the interface for cache backends.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// MetadataKeyOpts are the inputs that invalidate a cached metadata snapshot.
type MetadataKeyOpts struct {
	ManifestHash string // content hash of Cargo.toml
	LockfileHash string // content hash of Cargo.lock, empty if absent
}

// CheckKeyOpts are the inputs that invalidate cached check diagnostics.
type CheckKeyOpts struct {
	SourceHash string // content hash of the fused output file
	Toolchain  string // rustc version string, empty if unknown
}

// Keyer generates cache keys for the different cached data types.
type Keyer interface {
	// MetadataKey generates a key for a cargo metadata snapshot.
	MetadataKey(manifestPath string, opts MetadataKeyOpts) string

	// CheckKey generates a key for cargo check diagnostics.
	CheckKey(opts CheckKeyOpts) string
}

// DefaultKeyer is the standard key generation strategy.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// MetadataKey generates a key for a cargo metadata snapshot.
func (k *DefaultKeyer) MetadataKey(manifestPath string, opts MetadataKeyOpts) string {
	return hashKey("metadata", manifestPath, opts)
}

// CheckKey generates a key for cargo check diagnostics.
func (k *DefaultKeyer) CheckKey(opts CheckKeyOpts) string {
	return hashKey("check", opts)
}
