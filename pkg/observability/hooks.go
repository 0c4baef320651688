// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about fusion phases, cache operations, and cargo invocations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPhaseHooks(&myPhaseHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Phases().OnPhaseStart(ctx, "expand")
//	// ... expand use statements ...
//	observability.Phases().OnPhaseComplete(ctx, "expand", nodeCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Phase Hooks
// =============================================================================

// PhaseHooks receives events from the fusion pipeline phases.
type PhaseHooks interface {
	// OnPhaseStart records the start of a pipeline phase
	// (packages, sources, expand, link, require, assemble, forge).
	OnPhaseStart(ctx context.Context, phase string)

	// OnPhaseComplete records the end of a pipeline phase together with the
	// number of graph nodes touched by it.
	OnPhaseComplete(ctx context.Context, phase string, nodeCount int, duration time.Duration, err error)

	// OnDialogDecision records a manual include/exclude decision for an impl item.
	OnDialogDecision(ctx context.Context, item string, included bool)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Tool Hooks
// =============================================================================

// ToolHooks receives events from external toolchain invocations (cargo, rustfmt).
type ToolHooks interface {
	// OnToolRun records the start of an external tool invocation.
	OnToolRun(ctx context.Context, tool string, args []string)

	// OnToolExit records the completion of an external tool invocation.
	OnToolExit(ctx context.Context, tool string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPhaseHooks is a no-op implementation of PhaseHooks.
type NoopPhaseHooks struct{}

func (NoopPhaseHooks) OnPhaseStart(context.Context, string)                               {}
func (NoopPhaseHooks) OnPhaseComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPhaseHooks) OnDialogDecision(context.Context, string, bool)                     {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopToolHooks is a no-op implementation of ToolHooks.
type NoopToolHooks struct{}

func (NoopToolHooks) OnToolRun(context.Context, string, []string)              {}
func (NoopToolHooks) OnToolExit(context.Context, string, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	phaseHooks PhaseHooks = NoopPhaseHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	toolHooks  ToolHooks  = NoopToolHooks{}
	hooksMu    sync.RWMutex
)

// SetPhaseHooks registers custom phase hooks.
// This should be called once at application startup before any pipeline operations.
func SetPhaseHooks(h PhaseHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		phaseHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetToolHooks registers custom tool hooks.
// This should be called once at application startup before any cargo invocations.
func SetToolHooks(h ToolHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		toolHooks = h
	}
}

// Phases returns the registered phase hooks.
func Phases() PhaseHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return phaseHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Tools returns the registered tool hooks.
func Tools() ToolHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return toolHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	phaseHooks = NoopPhaseHooks{}
	cacheHooks = NoopCacheHooks{}
	toolHooks = NoopToolHooks{}
}
