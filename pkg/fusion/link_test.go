package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgfuse/cgfuse/pkg/graph"
)

func TestLinkImplementationEdges(t *testing.T) {
	opts := testOptions(t)
	st := expandState(t, opts, challengeFiles(`use my_lib::Go;

fn main() {
    let _g = Go::new();
}
`, map[string]string{
		"src/lib.rs": `pub struct Go;

pub trait Render {
    fn render(&self);
}

impl Go {
    pub fn new() -> Go { Go }
}

impl Go {
    pub fn reset(&mut self) {}
}

impl Render for Go {
    fn render(&self) {}
}
`,
	}))

	g := st.Graph
	lib := libCrate(t, g, "my_lib")
	goDecl := childNamed(t, g, lib, "Go")
	render := childNamed(t, g, lib, "Render")

	goImpls := g.Children(goDecl, graph.EdgeImplementation)
	assert.Len(t, goImpls, 3, "two inherent blocks and one trait impl")

	renderImpls := g.Children(render, graph.EdgeImplementation)
	require.Len(t, renderImpls, 1)

	// the trait impl hangs off both the type and the trait
	traitImpl := renderImpls[0]
	parents := g.Parents(traitImpl, graph.EdgeImplementation)
	assert.Len(t, parents, 2)
	assert.Contains(t, parents, goDecl)
	assert.Contains(t, parents, render)
}

func TestLinkUnresolvableSelfType(t *testing.T) {
	opts := testOptions(t)
	st := expandState(t, opts, challengeFiles(`impl missing::Type {
    fn x(&self) {}
}

fn main() {}
`, map[string]string{
		"src/lib.rs": "pub fn nop() {}\n",
	}))

	g := st.Graph
	blocks := implBlocks(g, st.BinCrate)
	require.Len(t, blocks, 1)
	assert.Empty(t, g.Parents(blocks[0], graph.EdgeImplementation),
		"an impl whose self type cannot resolve stays unlinked")
}
