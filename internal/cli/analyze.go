package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cgfuse/cgfuse/pkg/fusion"
	"github.com/cgfuse/cgfuse/pkg/graph"
	pkgio "github.com/cgfuse/cgfuse/pkg/io"
	"github.com/cgfuse/cgfuse/pkg/observability"
	"github.com/cgfuse/cgfuse/pkg/render"
)

// analyzeOpts holds the command-line flags for the analyze command.
type analyzeOpts struct {
	bin             string
	platform        string
	supportedCrates []string
	processAllImpls bool
	noCache         bool
	configPath      string

	dotPath      string // write the graph as DOT
	svgPath      string // write the graph as SVG
	jsonPath     string // write the graph as JSON
	serveAddr    string // serve the graph viewer at this address
	detailed     bool   // include node IDs and kinds in DOT/SVG labels
	requiredOnly bool   // restrict exports to the required subgraph
}

// analyzeCommand creates the analyze command. It runs the pipeline up to
// reachability and reports on the graph without writing the fused file.
func (c *CLI) analyzeCommand() *cobra.Command {
	var o analyzeOpts

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Inspect the challenge graph without writing the fusion",
		Long: `Analyze the challenge workspace and report what a fusion would keep.

The pipeline runs through reachability analysis but stops before assembly,
so nothing is written to src/bin/. The graph can be exported as DOT, SVG
or JSON, or explored in the browser with --serve.

Examples:
  cgfuse analyze                              # report on the current directory
  cgfuse analyze --svg graph.svg              # render the full graph
  cgfuse analyze --required-only --dot out.dot
  cgfuse analyze --serve localhost:8642       # interactive viewer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)

			opts := fusion.Options{
				ManifestPath:        c.manifestPath,
				BinName:             o.bin,
				Platform:            o.platform,
				SupportedCrates:     o.supportedCrates,
				Force:               c.force,
				ProcessAllImplItems: o.processAllImpls,
				ConfigPath:          o.configPath,
				Logger:              c.Logger,
			}

			interactive := isInteractive() && !c.quiet
			var sp *phaseSpinner
			if !c.quiet {
				sp = newPhaseSpinner(c.Logger, interactive)
				observability.SetPhaseHooks(sp)
				observability.SetCacheHooks(sp)
			}

			runner := c.newRunner(o.noCache)
			defer runner.Close()
			if interactive {
				runner.Oracle = newDialogOracle(sp)
				opts.Confirm = promptYesNo
			}

			res, err := runner.Analyze(ctx, opts)
			if err != nil {
				return err
			}

			if !c.quiet {
				cached := false
				if sp != nil {
					cached = sp.CacheHit()
				}
				printReport(res, cached)
			}

			if err := c.exportGraph(cmd, res, &o); err != nil {
				return err
			}

			if o.serveAddr != "" {
				return c.serveGraph(ctx, res.State, o.serveAddr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&o.bin, "bin", "", "entry binary target (defaults to the package's only binary)")
	cmd.Flags().StringVar(&o.platform, "platform", "", "target platform: codingame or other")
	cmd.Flags().StringSliceVar(&o.supportedCrates, "supported-crates", nil, "crates available on the platform (with --platform other)")
	cmd.Flags().BoolVar(&o.processAllImpls, "process-all-impl-items", false, "keep every impl item without asking")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "bypass the metadata cache")
	cmd.Flags().StringVar(&o.configPath, "config", "", "decision config file (default cgfuse.toml next to the manifest)")
	cmd.Flags().StringVar(&o.dotPath, "dot", "", "write the graph as Graphviz DOT to this file")
	cmd.Flags().StringVar(&o.svgPath, "svg", "", "render the graph as SVG to this file")
	cmd.Flags().StringVar(&o.jsonPath, "json", "", "write the graph as JSON to this file")
	cmd.Flags().StringVar(&o.serveAddr, "serve", "", "serve the interactive graph viewer at this address")
	cmd.Flags().BoolVar(&o.detailed, "detailed", false, "include node IDs and kinds in DOT/SVG labels")
	cmd.Flags().BoolVar(&o.requiredOnly, "required-only", false, "restrict exports to the required subgraph")

	return cmd
}

// printReport prints the analyze summary in the layout of the fuse result.
func printReport(res *fusion.Result, cached bool) {
	st := res.State
	g := st.Graph

	printNewline()
	fmt.Println(StyleTitle.Render("Challenge " + st.Workspace.Root.Name))
	printKeyValue("platform", st.Platform.Name())
	printKeyValue("binary", binaryName(st))
	printKeyValue("packages", packageSummary(g))
	printStats(res.Stats.NodeCount, res.Stats.EdgeCount, res.Stats.RequiredCount, cached)

	for _, name := range unsupportedDeps(g) {
		printWarning("%s is not available on %s", name, st.Platform.Name())
	}

	if len(st.Decisions) > 0 {
		printNewline()
		printInfo("%d impl-item decision(s)", len(st.Decisions))
		for _, d := range st.Decisions {
			verdict := "excluded"
			if d.Include {
				verdict = "included"
			}
			printDetail("%s %s (%s)", d.Item, verdict, originLabel(d.Origin))
		}
	}
	printNewline()
}

// exportGraph writes the requested DOT, SVG and JSON files.
func (c *CLI) exportGraph(cmd *cobra.Command, res *fusion.Result, o *analyzeOpts) error {
	g := res.State.Graph
	ropts := render.Options{Detailed: o.detailed, RequiredOnly: o.requiredOnly}

	if o.dotPath != "" {
		if err := os.WriteFile(o.dotPath, []byte(render.ToDOT(g, ropts)), 0o644); err != nil {
			return fmt.Errorf("write DOT: %w", err)
		}
		printFile(o.dotPath)
	}

	if o.svgPath != "" {
		svg, err := render.RenderSVG(cmd.Context(), render.ToDOT(g, ropts))
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.svgPath, svg, 0o644); err != nil {
			return fmt.Errorf("write SVG: %w", err)
		}
		printFile(o.svgPath)
	}

	if o.jsonPath != "" {
		if err := pkgio.ExportJSON(g, o.jsonPath); err != nil {
			return err
		}
		printFile(o.jsonPath)
	}

	return nil
}

// binaryName returns the entry binary's crate name.
func binaryName(st *fusion.State) string {
	if p, ok := st.Graph.Payload(st.BinCrate); ok {
		return p.Label()
	}
	return "unknown"
}

// packageSummary counts the workspace packages by category.
func packageSummary(g *graph.Graph) string {
	var local, supported, unsupported int
	for id := range g.EdgeBFS(g.Root(), graph.EdgeDependency) {
		p, ok := g.Payload(id)
		if !ok {
			continue
		}
		switch p.(type) {
		case *graph.LocalPackage:
			local++
		case *graph.ExternalSupportedPackage:
			supported++
		case *graph.ExternalUnsupportedPackage:
			unsupported++
		}
	}

	parts := []string{fmt.Sprintf("%d local", local)}
	if supported > 0 {
		parts = append(parts, fmt.Sprintf("%d supported", supported))
	}
	if unsupported > 0 {
		parts = append(parts, fmt.Sprintf("%d unsupported", unsupported))
	}
	return strings.Join(parts, ", ")
}

// unsupportedDeps returns the names of external dependencies missing from
// the platform allow-list, sorted.
func unsupportedDeps(g *graph.Graph) []string {
	var names []string
	for id := range g.EdgeBFS(g.Root(), graph.EdgeDependency) {
		if p, ok := g.Payload(id); ok {
			if ext, isExt := p.(*graph.ExternalUnsupportedPackage); isExt {
				names = append(names, ext.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// originLabel names a decision origin for the report.
func originLabel(origin fusion.DecisionOrigin) string {
	switch origin {
	case fusion.DecisionFromFlag:
		return "flag"
	case fusion.DecisionFromConfig:
		return "config"
	case fusion.DecisionFromDialog:
		return "dialog"
	}
	return "unknown"
}
