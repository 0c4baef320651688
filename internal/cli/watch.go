package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cgfuse/cgfuse/pkg/cargo"
	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/fusion"
)

// watchDebounce is how long the watcher waits after the last change before
// re-running. Editors fire several events per save.
const watchDebounce = 300 * time.Millisecond

// runWatch re-runs the pipeline whenever a source file of the workspace
// changes. Interactive dialogs are disabled; undecided impl items must be
// settled by config or --process-all-impl-items before watching.
func (c *CLI) runWatch(ctx context.Context, runner *fusion.Runner, opts fusion.Options) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	// Each change rewrites the previous fusion.
	opts.Force = true

	ws, err := cargo.LoadWorkspace(ctx, opts.ManifestPath, runner.Cache, runner.Keyer)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := 0
	for _, root := range watchRoots(ws) {
		n, err := watchTree(watcher, root)
		if err != nil {
			c.Logger.Warn("cannot watch", "dir", root, "err", err)
			continue
		}
		dirs += n
	}
	if dirs == 0 {
		return errors.New(errors.ErrCodeMetadata, "no source directories to watch under %s", filepath.Dir(opts.ManifestPath))
	}

	printInfo("Watching %d directories, fusing on change (ctrl+c to stop)", dirs)
	c.fuseOnce(ctx, runner, opts)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if _, addErr := watchTree(watcher, ev.Name); addErr != nil {
						c.Logger.Warn("cannot watch", "dir", ev.Name, "err", addErr)
					}
				}
			}
			if !relevantChange(ev) {
				continue
			}
			c.Logger.Debug("change detected", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watch error", "err", werr)
		case <-timerC:
			timer = nil
			timerC = nil
			c.fuseOnce(ctx, runner, opts)
		}
	}
}

// fuseOnce runs one watch-triggered fusion, reporting failures without
// stopping the watch loop.
func (c *CLI) fuseOnce(ctx context.Context, runner *fusion.Runner, opts fusion.Options) {
	if ctx.Err() != nil {
		return
	}
	prog := newProgress(c.Logger)
	res, err := runner.Execute(ctx, opts)
	if err != nil {
		if ctx.Err() == nil {
			printError("%v", err)
		}
		return
	}

	checkErrs := 0
	for _, d := range res.Diagnostics {
		if d.IsError() {
			checkErrs++
		}
	}
	if checkErrs > 0 {
		printWarning("%s has %d check error(s)", res.OutputPath, checkErrs)
	}
	prog.done(fmt.Sprintf("Fused %s", res.OutputPath))
}

// watchRoots returns the src directory of every local package, sorted for
// stable log output.
func watchRoots(ws *cargo.Workspace) []string {
	var roots []string
	for name := range ws.Manifests {
		p, ok := ws.Meta.PackageByName(name)
		if !ok {
			continue
		}
		roots = append(roots, filepath.Join(filepath.Dir(p.ManifestPath), "src"))
	}
	sort.Strings(roots)
	return roots
}

// watchTree registers root and every directory below it, returning how many
// were added. fsnotify watches are not recursive.
func watchTree(watcher *fsnotify.Watcher, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// relevantChange reports whether the event warrants a re-run. The fused
// output itself is ignored, otherwise every forge would trigger the next
// run.
func relevantChange(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, fusion.FusionPrefix) {
		return false
	}
	if strings.HasPrefix(base, ".") {
		return false // editor swap files
	}
	return strings.HasSuffix(base, ".rs") || base == "Cargo.toml"
}
