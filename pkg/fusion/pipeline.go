// Package fusion provides the core fusion pipeline for cgfuse.
//
// This package implements the complete packages → sources → expand → link →
// require → assemble → forge pipeline that can be used by CLI, watch, and
// server components. By centralizing this logic, we ensure consistent
// behavior across all entry points and avoid code duplication.
//
// # Architecture
//
// The pipeline consists of seven phases:
//
//  1. Packages: Discover the challenge workspace and classify dependencies
//     against the platform allow-list
//  2. Sources: Parse every local crate into the challenge graph
//  3. Expand: Rewrite use statements into canonical crate-rooted form
//  4. Link: Resolve name references and wire Use/Implementation edges
//  5. Require: Propagate requirements from the entry binary, consulting
//     the impl-item oracle for undecidable members
//  6. Assemble: Render the required subgraph as a single Rust file
//     (optionally flattening redundant modules first)
//  7. Forge: Write the fused file into the workspace and validate it with
//     rustfmt and cargo check
//
// Earlier phases can be run without the later ones: Analyze stops after
// Require and is what the analyze and serve commands build their reports
// from.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := fusion.NewRunner(cache, nil, logger)
//	opts := fusion.Options{
//	    ManifestPath: "challenge/Cargo.toml",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.OutputPath)
package fusion

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cgfuse/cgfuse/pkg/cache"
	"github.com/cgfuse/cgfuse/pkg/cargo"
	"github.com/cgfuse/cgfuse/pkg/graph"
	"github.com/cgfuse/cgfuse/pkg/observability"
)

const (
	// DefaultGlobExpansionMaxAttempts caps how often a single use statement
	// may be requeued during expansion before the run fails. Chains longer
	// than this are cyclic or pathological re-exports.
	DefaultGlobExpansionMaxAttempts = 5

	// DefaultMemoSize is the resolver memoization capacity.
	DefaultMemoSize = 4096

	// FusionPrefix starts the file name of every fused binary. Targets with
	// this prefix are ignored during binary discovery so a fused file never
	// feeds back into its own next run.
	FusionPrefix = "fusion_of_"
)

// Options contains all configuration for the fusion pipeline.
type Options struct {
	// Package options
	ManifestPath    string   // Cargo.toml of the challenge package
	BinName         string   // entry binary; defaults to the package's only binary target
	Platform        string   // target platform name (codingame, other)
	SupportedCrates []string // allow-list for --platform other
	Force           bool     // downgrade library policy violations, overwrite existing output

	// Source options
	KeepDocComments bool

	// Expansion options
	GlobExpansionMaxAttempts int

	// Requirement options
	ProcessAllImplItems bool // include every impl item without asking

	// Assembly options
	Flatten    bool   // collapse modules with unambiguous content into their parent
	FusionName string // output file stem; defaults to fusion_of_<package>

	// Forge options
	SkipFmt   bool
	SkipCheck bool

	// Config file options
	ConfigPath string  // defaults to cgfuse.toml next to the manifest
	Config     *Config // loaded lazily when nil

	// Runtime options
	Logger   *log.Logger
	Confirm  func(prompt string) bool // nil disables confirmation prompts
	MemoSize int

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.ManifestPath == "" {
		o.ManifestPath = "Cargo.toml"
	}
	if o.GlobExpansionMaxAttempts < 0 {
		return fmt.Errorf("glob expansion attempt cap must be positive")
	}
	if o.GlobExpansionMaxAttempts == 0 {
		o.GlobExpansionMaxAttempts = DefaultGlobExpansionMaxAttempts
	}
	if o.MemoSize == 0 {
		o.MemoSize = DefaultMemoSize
	}
	if o.ConfigPath == "" {
		o.ConfigPath = ConfigPathFor(o.ManifestPath)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ResolvedPlatform returns the platform selected by flags, the config file,
// or the CodinGame default, in that order.
func (o *Options) ResolvedPlatform() (Platform, error) {
	name := o.Platform
	if name == "" && o.Config != nil {
		name = o.Config.Platform
	}
	switch name {
	case "", PlatformCodinGame:
		return CodinGame(), nil
	case PlatformOther:
		crates := o.SupportedCrates
		if len(crates) == 0 && o.Config != nil {
			crates = o.Config.SupportedCrates
		}
		if len(crates) == 0 {
			return Platform{}, fmt.Errorf("platform %q needs a supported-crates list", PlatformOther)
		}
		return NewPlatform(PlatformOther, crates), nil
	default:
		return Platform{}, fmt.Errorf("unknown platform %q (must be one of: codingame, other)", name)
	}
}

// State carries the challenge graph and everything learned about it
// through the pipeline phases.
type State struct {
	Workspace *cargo.Workspace
	Graph     *graph.Graph
	Platform  Platform

	// BinCrate is the entry binary crate node, set by the sources phase.
	BinCrate graph.NodeID

	// Resolver is the memoized resolver built once the graph stopped
	// changing shape, set by the link phase.
	Resolver *graph.Resolver

	// Decisions lists every impl-item verdict made during the require
	// phase, including the ones answered interactively.
	Decisions []Decision
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// State is the final pipeline state, usable for reports and exports.
	State *State

	// Source is the fused file content. Empty for Analyze runs.
	Source string

	// OutputPath is where the fused file was written. Empty until forge ran.
	OutputPath string

	// Diagnostics holds the cargo check findings for the fused file.
	Diagnostics []cargo.Diagnostic

	// Stats contains timing and size information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount     int
	EdgeCount     int
	RequiredCount int
	FlattenedMods int

	PackagesTime time.Duration
	SourcesTime  time.Duration
	ExpandTime   time.Duration
	LinkTime     time.Duration
	RequireTime  time.Duration
	FlattenTime  time.Duration
	AssembleTime time.Duration
	ForgeTime    time.Duration
}

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache, logger and oracle - it
// doesn't store pipeline results. Multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Oracle answers impl-item questions the rules engine cannot decide.
	// A nil oracle makes undecided items fail the run.
	Oracle Oracle
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete pipeline and writes the fused file.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	result, err := r.analyze(ctx, &opts)
	if err != nil {
		return nil, err
	}
	st := result.State

	if opts.Flatten {
		flattenTime, err := r.phase(ctx, "flatten", st, func() error {
			n, err := FlattenModules(st.Graph, st.BinCrate)
			result.Stats.FlattenedMods = n
			return err
		})
		result.Stats.FlattenTime = flattenTime
		if err != nil {
			return nil, fmt.Errorf("flatten: %w", err)
		}
		r.Logger.Info("flattened modules",
			"count", result.Stats.FlattenedMods,
			"duration", result.Stats.FlattenTime.Round(time.Millisecond))
	}

	assembleTime, err := r.phase(ctx, "assemble", st, func() error {
		source, err := Assemble(st.Graph, st.BinCrate)
		result.Source = source
		return err
	})
	result.Stats.AssembleTime = assembleTime
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	r.Logger.Info("assembled fusion",
		"bytes", len(result.Source),
		"duration", result.Stats.AssembleTime.Round(time.Millisecond))

	forgeTime, err := r.phase(ctx, "forge", st, func() error {
		out, err := r.forge(ctx, st, result.Source, &opts)
		if out != nil {
			result.OutputPath = out.Path
			result.Diagnostics = out.Diagnostics
		}
		return err
	})
	result.Stats.ForgeTime = forgeTime
	if err != nil {
		return nil, fmt.Errorf("forge: %w", err)
	}
	r.Logger.Info("forged output",
		"path", result.OutputPath,
		"diagnostics", len(result.Diagnostics),
		"duration", result.Stats.ForgeTime.Round(time.Millisecond))

	return result, nil
}

// Analyze runs the pipeline up to and including the require phase, leaving
// the fused file unwritten. The returned state carries the fully marked
// graph for reports and exports.
func (r *Runner) Analyze(ctx context.Context, opts Options) (*Result, error) {
	return r.analyze(ctx, &opts)
}

func (r *Runner) analyze(ctx context.Context, opts *Options) (*Result, error) {
	r.applyLogger(opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	if opts.Config == nil {
		cfg, err := LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		opts.Config = cfg
	}

	st := &State{}
	result := &Result{State: st}

	packagesTime, err := r.phase(ctx, "packages", st, func() error {
		ws, err := cargo.LoadWorkspace(ctx, opts.ManifestPath, r.Cache, r.Keyer)
		if err != nil {
			return err
		}
		st.Workspace = ws
		platform, err := opts.ResolvedPlatform()
		if err != nil {
			return err
		}
		st.Platform = platform
		g, err := BuildPackages(ws, platform, opts)
		st.Graph = g
		return err
	})
	result.Stats.PackagesTime = packagesTime
	if err != nil {
		return nil, fmt.Errorf("packages: %w", err)
	}
	r.Logger.Info("linked packages",
		"packages", len(st.Workspace.Manifests),
		"platform", st.Platform.Name(),
		"duration", result.Stats.PackagesTime.Round(time.Millisecond))

	sourcesTime, err := r.phase(ctx, "sources", st, func() error {
		bin, err := LoadSources(ctx, st.Graph, st.Workspace, opts)
		st.BinCrate = bin
		return err
	})
	result.Stats.SourcesTime = sourcesTime
	if err != nil {
		return nil, fmt.Errorf("sources: %w", err)
	}
	r.Logger.Info("loaded sources",
		"nodes", st.Graph.NodeCount(),
		"duration", result.Stats.SourcesTime.Round(time.Millisecond))

	expandTime, err := r.phase(ctx, "expand", st, func() error {
		return ExpandUses(st.Graph, opts)
	})
	result.Stats.ExpandTime = expandTime
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	r.Logger.Info("expanded use statements",
		"duration", result.Stats.ExpandTime.Round(time.Millisecond))

	linkTime, err := r.phase(ctx, "link", st, func() error {
		resolver, err := LinkReferences(st.Graph, opts)
		st.Resolver = resolver
		return err
	})
	result.Stats.LinkTime = linkTime
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}
	r.Logger.Info("linked references",
		"edges", st.Graph.EdgeCount(),
		"duration", result.Stats.LinkTime.Round(time.Millisecond))

	requireTime, err := r.phase(ctx, "require", st, func() error {
		decisions, err := MarkRequirements(ctx, st, r.Oracle, opts)
		st.Decisions = decisions
		return err
	})
	result.Stats.RequireTime = requireTime
	if err != nil {
		return nil, fmt.Errorf("require: %w", err)
	}

	result.Stats.NodeCount = st.Graph.NodeCount()
	result.Stats.EdgeCount = st.Graph.EdgeCount()
	result.Stats.RequiredCount = len(st.Graph.RequiredIDs())
	r.Logger.Info("marked requirements",
		"required", result.Stats.RequiredCount,
		"nodes", result.Stats.NodeCount,
		"duration", result.Stats.RequireTime.Round(time.Millisecond))

	r.offerDecisionSave(opts, st.Decisions)

	return result, nil
}

// offerDecisionSave persists fresh dialog answers to the config file when
// the user agrees.
func (r *Runner) offerDecisionSave(opts *Options, decisions []Decision) {
	fresh := 0
	for _, d := range decisions {
		if d.Origin == DecisionFromDialog {
			fresh++
		}
	}
	if fresh == 0 || opts.Confirm == nil {
		return
	}
	prompt := fmt.Sprintf("Save %d impl-item decision(s) to %s?", fresh, opts.ConfigPath)
	if !opts.Confirm(prompt) {
		return
	}
	for _, d := range decisions {
		if d.Origin == DecisionFromDialog {
			opts.Config.RecordImplItem(d.Item, d.Include)
		}
	}
	if err := opts.Config.Save(); err != nil {
		r.Logger.Warn("could not save config", "path", opts.ConfigPath, "err", err)
	}
}

// phase wraps fn with the observability phase hooks.
func (r *Runner) phase(ctx context.Context, name string, st *State, fn func() error) (time.Duration, error) {
	observability.Phases().OnPhaseStart(ctx, name)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	nodes := 0
	if st.Graph != nil {
		nodes = st.Graph.NodeCount()
	}
	observability.Phases().OnPhaseComplete(ctx, name, nodes, elapsed, err)
	return elapsed, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
