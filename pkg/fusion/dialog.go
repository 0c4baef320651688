package fusion

import (
	"context"

	"github.com/cgfuse/cgfuse/pkg/graph"
)

// Choice is one fate the decision oracle can pick for an undecided impl
// item.
type Choice int

const (
	// ChoiceInclude keeps the candidate item.
	ChoiceInclude Choice = iota
	// ChoiceExclude drops the candidate item.
	ChoiceExclude
	// ChoiceIncludeBlock keeps every undecided item of the candidate's
	// impl block.
	ChoiceIncludeBlock
	// ChoiceExcludeBlock drops every undecided item of the candidate's
	// impl block.
	ChoiceExcludeBlock
)

// DecisionOrigin records which collaborator settled an impl item.
type DecisionOrigin int

const (
	// DecisionFromFlag means a blanket option decided without asking.
	DecisionFromFlag DecisionOrigin = iota
	// DecisionFromConfig means the item was listed in the config file.
	DecisionFromConfig
	// DecisionFromDialog means a human decided interactively.
	DecisionFromDialog
)

// Decision is one resolved inclusion choice, keyed by the qualified name
// the config file records.
type Decision struct {
	Item    string
	Include bool
	Origin  DecisionOrigin
}

// Candidate is an impl item of a required inherent impl block that no
// required code references explicitly. The reachability phase collects
// candidates and asks the oracle to settle them.
type Candidate struct {
	ID    graph.NodeID
	Block graph.NodeID
	// Name is the qualified name decisions are recorded under, e.g.
	// "Go::set_tower".
	Name string
	// BlockLabel names the enclosing impl block, e.g. "impl Go".
	BlockLabel string
	// Src is the full source text of the candidate item.
	Src string
	// Usages are lines of required code that mention the item's bare
	// name; hints for whoever decides.
	Usages []string
}

// Oracle settles impl items the reachability phase cannot decide on its
// own. Implementations may prompt a human; aborting the dialog surfaces an
// error carrying ErrCodeDialogCanceled.
type Oracle interface {
	Decide(ctx context.Context, c Candidate) (Choice, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, c Candidate) (Choice, error)

// Decide implements Oracle.
func (f OracleFunc) Decide(ctx context.Context, c Candidate) (Choice, error) {
	return f(ctx, c)
}
