package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cgfuse/cgfuse/pkg/fusion"
	"github.com/cgfuse/cgfuse/pkg/observability"
)

// fuseOpts holds the command-line flags for the fuse command.
// Global flags (--manifest-path, --force, --quiet) live on the root command.
type fuseOpts struct {
	bin             string   // entry binary target, when the package has several
	platform        string   // target platform (codingame, other)
	supportedCrates []string // allow-list for --platform other
	keepDocComments bool     // keep /// and //! comments in the fused file
	maxGlobAttempts int      // requeue cap per use statement during expansion
	processAllImpls bool     // keep every impl item without asking
	flatten         bool     // collapse single-use modules into their parent
	fusionName      string   // output file stem
	skipFmt         bool     // skip cargo fmt on the fused file
	skipCheck       bool     // skip cargo check on the fused file
	noCache         bool     // bypass the metadata cache
	configPath      string   // cgfuse.toml location
	watch           bool     // re-run on source changes
}

// fusionOptions converts the flag values into pipeline options.
func (c *CLI) fusionOptions(o *fuseOpts) fusion.Options {
	return fusion.Options{
		ManifestPath:             c.manifestPath,
		BinName:                  o.bin,
		Platform:                 o.platform,
		SupportedCrates:          o.supportedCrates,
		Force:                    c.force,
		KeepDocComments:          o.keepDocComments,
		GlobExpansionMaxAttempts: o.maxGlobAttempts,
		ProcessAllImplItems:      o.processAllImpls,
		Flatten:                  o.flatten,
		FusionName:               o.fusionName,
		SkipFmt:                  o.skipFmt,
		SkipCheck:                o.skipCheck,
		ConfigPath:               o.configPath,
		Logger:                   c.Logger,
	}
}

// fuseCommand creates the fuse command, the main entry point of the tool.
func (c *CLI) fuseCommand() *cobra.Command {
	var o fuseOpts

	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Fuse the challenge workspace into one submittable file",
		Long: `Fuse a challenge workspace into one submittable Rust file.

The pipeline parses the binary crate and every local library crate it
depends on, expands use declarations, links paths to their declarations,
and keeps what the entry point actually reaches. Library crates become
inline modules; the result is written to src/bin/ of the challenge
package and verified with cargo fmt and cargo check.

Examples:
  cgfuse fuse                                   # challenge in the current directory
  cgfuse fuse -m challenge/Cargo.toml           # explicit manifest
  cgfuse fuse --flatten --fusion-name solution  # collapse modules, custom name
  cgfuse fuse --watch                           # re-fuse on every source change`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			opts := c.fusionOptions(&o)

			interactive := isInteractive() && !c.quiet
			var sp *phaseSpinner
			if !c.quiet {
				sp = newPhaseSpinner(c.Logger, interactive)
				observability.SetPhaseHooks(sp)
				observability.SetCacheHooks(sp)
			}

			runner := c.newRunner(o.noCache)
			defer runner.Close()

			if interactive && !o.watch {
				runner.Oracle = newDialogOracle(sp)
				opts.Confirm = promptYesNo
			}

			if o.watch {
				return c.runWatch(ctx, runner, opts)
			}
			return c.runFuse(ctx, runner, opts, sp)
		},
	}

	cmd.Flags().StringVar(&o.bin, "bin", "", "entry binary target (defaults to the package's only binary)")
	cmd.Flags().StringVar(&o.platform, "platform", "", "target platform: codingame or other")
	cmd.Flags().StringSliceVar(&o.supportedCrates, "supported-crates", nil, "crates available on the platform (with --platform other)")
	cmd.Flags().BoolVar(&o.keepDocComments, "keep-doc-comments", false, "keep doc comments in the fused file")
	cmd.Flags().IntVar(&o.maxGlobAttempts, "glob-expansion-max-attempts", 0, "requeue cap per use statement during glob expansion")
	cmd.Flags().BoolVar(&o.processAllImpls, "process-all-impl-items", false, "keep every impl item without asking")
	cmd.Flags().BoolVar(&o.flatten, "flatten", false, "collapse modules into their parent where no name collides")
	cmd.Flags().StringVar(&o.fusionName, "fusion-name", "", "output file stem (default fusion_of_<package>)")
	cmd.Flags().BoolVar(&o.skipFmt, "skip-fmt", false, "skip cargo fmt on the fused file")
	cmd.Flags().BoolVar(&o.skipCheck, "skip-check", false, "skip cargo check on the fused file")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "bypass the metadata cache")
	cmd.Flags().StringVar(&o.configPath, "config", "", "decision config file (default cgfuse.toml next to the manifest)")
	cmd.Flags().BoolVar(&o.watch, "watch", false, "watch source files and re-fuse on changes")

	return cmd
}

// runFuse executes the pipeline once and reports the outcome.
func (c *CLI) runFuse(ctx context.Context, runner *fusion.Runner, opts fusion.Options, sp *phaseSpinner) error {
	res, err := runner.Execute(ctx, opts)
	if err != nil {
		return err
	}
	if c.quiet {
		return nil
	}

	cached := false
	if sp != nil {
		cached = sp.CacheHit()
	}

	printNewline()
	printSuccess("Fused %s", StyleHighlight.Render(res.State.Workspace.Root.Name))
	printFile(res.OutputPath)
	printStats(res.Stats.NodeCount, res.Stats.EdgeCount, res.Stats.RequiredCount, cached)
	if res.Stats.FlattenedMods > 0 {
		printDetail("%d module(s) flattened", res.Stats.FlattenedMods)
	}
	printDiagnostics(res.Diagnostics)
	printNewline()
	printNextStep("Inspect the graph", "cgfuse analyze")
	return nil
}
