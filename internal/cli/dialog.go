package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/cgfuse/cgfuse/pkg/errors"
	"github.com/cgfuse/cgfuse/pkg/fusion"
)

// Dialog styles
var (
	dialogNameStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	dialogBlockStyle = lipgloss.NewStyle().Foreground(colorGray)
	dialogCodeStyle  = lipgloss.NewStyle().Foreground(colorWhite)
	dialogDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ImplDialogModel - Interactive impl-item decision
// =============================================================================

// ImplDialogModel is the bubbletea model for deciding a single undecided
// impl item. The reachability phase cannot tell whether such items are
// needed (method calls resolve at runtime via the receiver), so a human
// settles each one.
type ImplDialogModel struct {
	Candidate fusion.Candidate

	Choice   fusion.Choice
	Decided  bool
	Canceled bool

	showSource bool
	showUsages bool
}

// NewImplDialogModel creates a dialog model for the given candidate.
func NewImplDialogModel(c fusion.Candidate) ImplDialogModel {
	return ImplDialogModel{Candidate: c}
}

func (m ImplDialogModel) Init() tea.Cmd {
	return nil
}

func (m ImplDialogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Canceled = true
			return m, tea.Quit
		case "y", "enter":
			m.Choice = fusion.ChoiceInclude
			m.Decided = true
			return m, tea.Quit
		case "n":
			m.Choice = fusion.ChoiceExclude
			m.Decided = true
			return m, tea.Quit
		case "a":
			m.Choice = fusion.ChoiceIncludeBlock
			m.Decided = true
			return m, tea.Quit
		case "x":
			m.Choice = fusion.ChoiceExcludeBlock
			m.Decided = true
			return m, tea.Quit
		case "s":
			m.showSource = !m.showSource
		case "u":
			m.showUsages = !m.showUsages
		}
	}
	return m, nil
}

func (m ImplDialogModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Keep this impl item?"))
	b.WriteString("\n")
	b.WriteString(dialogDimStyle.Render("y include  n exclude  a whole block  x drop block  s source  u usages  q quit"))
	b.WriteString("\n\n")

	b.WriteString("  " + dialogBlockStyle.Render(m.Candidate.BlockLabel))
	b.WriteString("\n")
	b.WriteString("  " + dialogNameStyle.Render(m.Candidate.Name))
	b.WriteString("\n\n")

	if len(m.Candidate.Usages) == 0 {
		b.WriteString("  " + dialogDimStyle.Render("no mention in required code"))
		b.WriteString("\n")
	} else {
		b.WriteString("  " + dialogDimStyle.Render(fmt.Sprintf("%d mention(s) in required code", len(m.Candidate.Usages))))
		b.WriteString("\n")
		if m.showUsages {
			for _, u := range m.Candidate.Usages {
				b.WriteString("    " + dialogCodeStyle.Render(strings.TrimSpace(u)))
				b.WriteString("\n")
			}
		}
	}

	if m.showSource {
		b.WriteString("\n")
		for _, line := range strings.Split(strings.TrimRight(m.Candidate.Src, "\n"), "\n") {
			b.WriteString("  " + dialogCodeStyle.Render(line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// =============================================================================
// DialogOracle
// =============================================================================

// DialogOracle settles undecided impl items by prompting on the terminal.
// It implements fusion.Oracle.
type DialogOracle struct {
	// spinner is suspended before the first prompt so the dialog owns the
	// terminal. May be nil.
	spinner *phaseSpinner
}

// newDialogOracle creates an oracle that prompts via bubbletea.
func newDialogOracle(spinner *phaseSpinner) *DialogOracle {
	return &DialogOracle{spinner: spinner}
}

// Decide runs the dialog for one candidate. Quitting the dialog aborts the
// whole run with ErrCodeDialogCanceled.
func (o *DialogOracle) Decide(ctx context.Context, c fusion.Candidate) (fusion.Choice, error) {
	if o.spinner != nil {
		o.spinner.Suspend()
	}

	p := tea.NewProgram(NewImplDialogModel(c), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeDialogCanceled, err, "impl-item dialog interrupted at %s", c.Name)
	}
	m, ok := final.(ImplDialogModel)
	if !ok || !m.Decided {
		return 0, errors.New(errors.ErrCodeDialogCanceled, "impl-item dialog canceled at %s", c.Name)
	}
	loggerFromContext(ctx).Debug("impl item decided", "item", c.Name, "choice", int(m.Choice))
	return m.Choice, nil
}

// =============================================================================
// Prompts
// =============================================================================

// isInteractive reports whether both ends of a prompt are terminals.
func isInteractive() bool {
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stderr.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptYesNo asks a yes/no question on the terminal, defaulting to no.
func promptYesNo(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s %s [y/N] ", StyleHighlight.Render("?"), prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
