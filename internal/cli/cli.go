// Package cli implements the cgfuse command-line interface.
//
// This package provides commands for fusing a multi-crate challenge
// workspace into a single submittable file, inspecting the challenge graph
// without writing anything, and housekeeping around previous runs. The CLI
// is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - fuse: Run the full pipeline and write the fused file to src/bin/
//   - analyze: Run the pipeline without forging and report on the graph
//   - clean: Remove fused files written by earlier runs
//   - cache: Manage the metadata and diagnostics cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, and the
// CGFUSE_LOG environment variable overrides the level outright. Loggers
// are passed through context.Context so the fusion phases report progress
// through the same sink.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cgfuse/cgfuse/pkg/buildinfo"
	"github.com/cgfuse/cgfuse/pkg/cache"
	"github.com/cgfuse/cgfuse/pkg/fusion"
)

// appName is the application name used for directories and display.
const appName = "cgfuse"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Global flag state, populated by RootCommand's persistent flags.
	manifestPath string
	quiet        bool
	force        bool
	noColor      bool
}

// New creates a new CLI instance logging to w at the given level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cgfuse",
		Short: "cgfuse fuses a Cargo workspace into one submittable Rust file",
		Long: `cgfuse takes a CodinGame-style challenge workspace, a binary crate plus
the local library crates it depends on, and fuses the code the entry point
actually reaches into a single .rs file that compiles on its own.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVarP(&c.manifestPath, "manifest-path", "m", "", "path to the challenge Cargo.toml")
	root.PersistentFlags().BoolVarP(&c.quiet, "quiet", "q", false, "suppress progress output")
	root.PersistentFlags().BoolVar(&c.force, "force", false, "overwrite existing files without asking")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if c.noColor {
			disableColor()
		}
		if c.quiet {
			c.Logger.SetLevel(log.WarnLevel)
		}
		// CGFUSE_LOG beats flags so scripts can pin a level.
		c.Logger.SetLevel(levelFromEnv(c.Logger.GetLevel()))
		return nil
	}

	root.AddCommand(c.fuseCommand())
	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.cleanCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// versionCommand prints build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, buildinfo.String())
		},
	}
}

// newRunner creates a fusion pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) *fusion.Runner {
	return fusion.NewRunner(openCache(noCache), nil, c.Logger)
}

func openCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return fc
}

// cacheDir returns the cache directory using the XDG standard
// (~/.cache/cgfuse/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
