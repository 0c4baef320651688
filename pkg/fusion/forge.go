package fusion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cgfuse/cgfuse/pkg/cache"
	"github.com/cgfuse/cgfuse/pkg/cargo"
	"github.com/cgfuse/cgfuse/pkg/errors"
)

// forgeResult is what the forge phase hands back to the pipeline.
type forgeResult struct {
	Path        string
	Diagnostics []cargo.Diagnostic
}

// forge writes the fused source as a binary target of the challenge package
// and validates it with rustfmt and cargo check. The fused file lands in
// src/bin/ so the challenge's own Cargo.toml compiles it without edits.
func (r *Runner) forge(ctx context.Context, st *State, source string, opts *Options) (*forgeResult, error) {
	name := opts.FusionName
	if name == "" {
		name = FusionPrefix + crateName(st.Workspace.Root.Name)
	}
	rel := filepath.Join("src", "bin", name+".rs")
	if err := errors.ValidateOutputPath(rel); err != nil {
		return nil, err
	}
	path := filepath.Join(filepath.Dir(st.Workspace.Root.ManifestPath), rel)

	if _, err := os.Stat(path); err == nil && !opts.Force {
		if opts.Confirm == nil || !opts.Confirm(fmt.Sprintf("Overwrite %s?", path)) {
			return nil, errors.New(errors.ErrCodeForge, "%s already exists (pass --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeForge, err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return nil, errors.Wrap(errors.ErrCodeForge, err, "write %s", path)
	}
	out := &forgeResult{Path: path}

	manifest := st.Workspace.Root.ManifestPath
	if !opts.SkipFmt {
		if err := cargo.Fmt(ctx, manifest); err != nil {
			// A fused file rustfmt cannot parse still gets checked below,
			// where the compiler produces the better diagnostics.
			r.Logger.Warn("rustfmt failed", "path", path, "err", err)
		}
	}

	if !opts.SkipCheck {
		diags, err := r.checkFused(ctx, manifest, source)
		if err != nil {
			return nil, err
		}
		out.Diagnostics = diags
	}
	return out, nil
}

// checkFused runs cargo check on the package, consulting the cache first.
// The key covers the fused source and the toolchain version, so diagnostics
// survive across runs that regenerate identical output.
func (r *Runner) checkFused(ctx context.Context, manifestPath, source string) ([]cargo.Diagnostic, error) {
	key := r.Keyer.CheckKey(cache.CheckKeyOpts{
		SourceHash: cache.Hash([]byte(source)),
		Toolchain:  cargo.ToolchainVersion(ctx),
	})

	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		var diags []cargo.Diagnostic
		if err := json.Unmarshal(data, &diags); err == nil {
			r.Logger.Debug("check cache hit", "key", key)
			return diags, nil
		}
		_ = r.Cache.Delete(ctx, key)
	}

	diags, err := cargo.Check(ctx, manifestPath)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(diags); err == nil {
		_ = r.Cache.Set(ctx, key, data, cache.DefaultTTL)
	}
	return diags, nil
}
