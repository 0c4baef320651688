package cargo

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/observability"
)

// Diagnostic is one compiler message from `cargo check`.
type Diagnostic struct {
	Level    string // "error", "warning", "note", ...
	Message  string // short message
	Rendered string // full rustc rendering with source snippet
}

// IsError reports whether the diagnostic is an error.
func (d Diagnostic) IsError() bool { return d.Level == "error" }

// checkLine is one line of `cargo check --message-format=json` output.
type checkLine struct {
	Reason  string `json:"reason"`
	Message struct {
		Level    string `json:"level"`
		Message  string `json:"message"`
		Rendered string `json:"rendered"`
	} `json:"message"`
}

// Check runs `cargo check` on the package and returns the compiler
// diagnostics. A non-empty result does not imply failure; callers decide
// based on diagnostic levels. The returned error covers toolchain failures
// only, not compile errors in the checked code.
func Check(ctx context.Context, manifestPath string) ([]Diagnostic, error) {
	if _, err := exec.LookPath("cargo"); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCheck, err, "cargo not found in PATH (install via rustup: https://rustup.rs)")
	}

	args := []string{"check", "--message-format=json", "--manifest-path", manifestPath}
	cmd := exec.CommandContext(ctx, "cargo", args...)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	observability.Tools().OnToolRun(ctx, "cargo", args)
	start := time.Now()
	runErr := cmd.Run()
	observability.Tools().OnToolExit(ctx, "cargo", time.Since(start), runErr)

	diags, parseErr := parseCheckOutput(out.Bytes())
	if parseErr != nil {
		return nil, parseErr
	}

	// cargo check exits non-zero when the checked code has errors; that case
	// is reported through the diagnostics, not as a toolchain failure.
	if runErr != nil && len(diags) == 0 {
		return nil, errors.Wrap(errors.ErrCodeCheck, runErr, "cargo check for %s: %s", manifestPath, errBuf.String())
	}
	return diags, nil
}

// parseCheckOutput decodes the JSON-lines stream, keeping compiler messages.
func parseCheckOutput(out []byte) ([]Diagnostic, error) {
	var diags []Diagnostic
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg checkLine
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Reason != "compiler-message" {
			continue
		}
		diags = append(diags, Diagnostic{
			Level:    msg.Message.Level,
			Message:  msg.Message.Message,
			Rendered: msg.Message.Rendered,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCheck, err, "scan cargo check output")
	}
	return diags, nil
}

// Fmt runs `cargo fmt` on the package containing the manifest.
func Fmt(ctx context.Context, manifestPath string) error {
	if _, err := exec.LookPath("cargo"); err != nil {
		return errors.Wrap(errors.ErrCodeForge, err, "cargo not found in PATH (install via rustup: https://rustup.rs)")
	}

	args := []string{"fmt", "--manifest-path", manifestPath}
	cmd := exec.CommandContext(ctx, "cargo", args...)

	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	observability.Tools().OnToolRun(ctx, "cargo", args)
	start := time.Now()
	err := cmd.Run()
	observability.Tools().OnToolExit(ctx, "cargo", time.Since(start), err)

	if err != nil {
		return errors.Wrap(errors.ErrCodeForge, err, "cargo fmt for %s: %s", manifestPath, errBuf.String())
	}
	return nil
}

// ToolchainVersion returns the trimmed `rustc --version` string,
// used for check-diagnostic cache keys. Returns "" when rustc is missing.
func ToolchainVersion(ctx context.Context) string {
	cmd := exec.CommandContext(ctx, "rustc", "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}
	return strings.TrimSpace(out.String())
}
