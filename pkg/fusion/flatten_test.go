package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgfuse/cgfuse/pkg/graph"
)

func TestFlattenCollapsesSingletonModule(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`use my_lib::point::Point;

fn main() {
    let _p = Point { x: 1, y: 2 };
}
`, map[string]string{
		"src/lib.rs": "pub mod point;\n",
		"src/point.rs": `pub struct Point {
    pub x: i32,
    pub y: i32,
}
`,
	}))

	g := st.Graph
	lib := libCrate(t, g, "my_lib")
	point := childNamed(t, g, lib, "point")

	n, err := FlattenModules(g, st.BinCrate)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.False(t, g.Contains(point), "the collapsed module is gone")
	hoisted := childNamed(t, g, lib, "Point")
	assert.True(t, g.IsRequired(hoisted))
	assert.Equal(t, []string{"use my_lib::Point;"}, useSrcs(g, st.BinCrate),
		"imports through the module lose its segment")
}

func TestFlattenRerootsNestedChain(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`use my_lib::geo::point::Point;

fn main() {
    let _p = Point { x: 1 };
}
`, map[string]string{
		"src/lib.rs":       "pub mod geo;\n",
		"src/geo.rs":       "pub mod point;\n",
		"src/geo/point.rs": "pub struct Point {\n    pub x: i32,\n}\n",
	}))

	g := st.Graph
	n, err := FlattenModules(g, st.BinCrate)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "chains fold bottom-up across passes")

	lib := libCrate(t, g, "my_lib")
	childNamed(t, g, lib, "Point")
	assert.Equal(t, []string{"use my_lib::Point;"}, useSrcs(g, st.BinCrate))
}

func TestFlattenBlockedByExplicitRef(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`fn main() {
    let _p = my_lib::point::Point { x: 1, y: 2 };
}
`, map[string]string{
		"src/lib.rs": "pub mod point;\n",
		"src/point.rs": `pub struct Point {
    pub x: i32,
    pub y: i32,
}
`,
	}))

	g := st.Graph
	lib := libCrate(t, g, "my_lib")
	point := childNamed(t, g, lib, "point")
	require.True(t, g.IsRequired(point))

	n, err := FlattenModules(g, st.BinCrate)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a body path through the module pins it")
	assert.True(t, g.Contains(point))
}

func TestFlattenBlockedByNameCollision(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`use my_lib::Point as RootPoint;
use my_lib::point::Point;

fn main() {
    let _a = RootPoint;
    let _b = Point;
}
`, map[string]string{
		"src/lib.rs": `pub struct Point;

pub mod point;
`,
		"src/point.rs": "pub struct Point;\n",
	}))

	g := st.Graph
	lib := libCrate(t, g, "my_lib")
	point := childNamed(t, g, lib, "point")

	n, err := FlattenModules(g, st.BinCrate)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, g.Contains(point))
	assert.Equal(t, []string{
		"use my_lib::Point as RootPoint;",
		"use my_lib::point::Point;",
	}, useSrcs(g, st.BinCrate), "imports stay put when nothing collapses")
}

func TestFlattenBlockedByRelativeNav(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`use my_lib::point::make;

fn main() {
    let _p = make();
}
`, map[string]string{
		"src/lib.rs": `pub mod point;

pub fn helper() {}
`,
		"src/point.rs": `pub struct Point;

pub fn make() -> Point {
    super::helper();
    Point
}
`,
	}))

	g := st.Graph
	lib := libCrate(t, g, "my_lib")
	point := childNamed(t, g, lib, "point")

	n, err := FlattenModules(g, st.BinCrate)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "super navigation is written against the module's position")
	assert.True(t, g.Contains(point))
}

func TestFlattenBlockedByModuleImport(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`use my_lib::util;

fn main() {
    util::helper();
}
`, map[string]string{
		"src/lib.rs":  "pub mod util;\n",
		"src/util.rs": "pub fn helper() {}\n",
	}))

	g := st.Graph
	lib := libCrate(t, g, "my_lib")
	util := childNamed(t, g, lib, "util")
	require.NotEmpty(t, g.Parents(util, graph.EdgeUse))

	n, err := FlattenModules(g, st.BinCrate)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "an import binding the module has nothing to bind afterwards")
}
