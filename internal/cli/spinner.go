package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Spinner provides a simple progress indicator with context cancellation support.
type Spinner struct {
	message string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	frames  []string
	mu      sync.Mutex
}

// newSpinnerWithContext creates a spinner that will stop when the context is cancelled.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		message: message,
		ctx:     spinnerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.done:
				return
			case <-ticker.C:
				frame := s.frames[i%len(s.frames)]
				s.mu.Lock()
				fmt.Fprintf(os.Stderr, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
				s.mu.Unlock()
				i++
			}
		}
	}()
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.cancel()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	<-s.stopped
	s.clearLine()
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

// phaseLabels maps pipeline phase names to the messages shown while they run.
var phaseLabels = map[string]string{
	"packages": "Reading workspace manifests",
	"sources":  "Parsing crate sources",
	"expand":   "Expanding use declarations",
	"link":     "Linking references",
	"require":  "Tracing required items",
	"flatten":  "Flattening modules",
	"assemble": "Assembling fused source",
	"forge":    "Writing fused binary",
}

// phaseSpinner renders pipeline progress. In interactive mode each phase
// gets an animated spinner that resolves into a success or error line; in
// non-interactive mode (pipes, CI) phases are logged instead. It implements
// observability.PhaseHooks and observability.CacheHooks.
type phaseSpinner struct {
	logger      *log.Logger
	interactive bool

	mu       sync.Mutex
	current  *Spinner
	cacheHit bool
}

// newPhaseSpinner creates phase hooks writing to the terminal when
// interactive, falling back to logger output otherwise.
func newPhaseSpinner(logger *log.Logger, interactive bool) *phaseSpinner {
	return &phaseSpinner{logger: logger, interactive: interactive}
}

func (p *phaseSpinner) OnPhaseStart(ctx context.Context, phase string) {
	label := phaseLabel(phase)
	if !p.interactive {
		p.logger.Debug("phase start", "phase", phase)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = newSpinnerWithContext(ctx, label+"...")
	p.current.Start()
}

func (p *phaseSpinner) OnPhaseComplete(ctx context.Context, phase string, nodeCount int, duration time.Duration, err error) {
	label := phaseLabel(phase)
	elapsed := duration.Round(time.Millisecond)
	if !p.interactive {
		if err != nil {
			p.logger.Error("phase failed", "phase", phase, "elapsed", elapsed, "err", err)
		} else {
			p.logger.Info(label, "phase", phase, "nodes", nodeCount, "elapsed", elapsed)
		}
		return
	}
	p.mu.Lock()
	s := p.current
	p.current = nil
	p.mu.Unlock()
	if s != nil {
		s.Stop()
	}
	if err != nil {
		if ctx.Err() != nil {
			return // interrupted, the command reports cancellation itself
		}
		printError("%s failed (%s)", label, elapsed)
		return
	}
	printSuccess("%s %s", label, StyleDim.Render(fmt.Sprintf("(%s)", elapsed)))
}

func (p *phaseSpinner) OnDialogDecision(ctx context.Context, item string, included bool) {
	verdict := "excluded"
	if included {
		verdict = "included"
	}
	if !p.interactive {
		p.logger.Info("impl item decided", "item", item, "verdict", verdict)
		return
	}
	printDetail("%s %s", item, verdict)
}

// OnCacheHit remembers that workspace metadata came from the cache, so the
// result line can say so.
func (p *phaseSpinner) OnCacheHit(ctx context.Context, keyType string) {
	p.mu.Lock()
	p.cacheHit = true
	p.mu.Unlock()
}

func (p *phaseSpinner) OnCacheMiss(context.Context, string)     {}
func (p *phaseSpinner) OnCacheSet(context.Context, string, int) {}

// CacheHit reports whether any cache lookup hit during the run.
func (p *phaseSpinner) CacheHit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cacheHit
}

// Suspend stops the active spinner so another component can take over the
// terminal. The interactive dialog calls this before rendering.
func (p *phaseSpinner) Suspend() {
	p.mu.Lock()
	s := p.current
	p.current = nil
	p.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// phaseLabel returns the display label for a phase, falling back to the raw
// name for phases added later.
func phaseLabel(phase string) string {
	if label, ok := phaseLabels[phase]; ok {
		return label
	}
	return phase
}
