package fusion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIndex(t *testing.T, haystack, needle string) int {
	t.Helper()
	i := strings.Index(haystack, needle)
	require.NotEqual(t, -1, i, "output lacks %q:\n%s", needle, haystack)
	return i
}

func TestAssembleMinimalProgram(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`use my_lib::ping;

fn main() {
    ping();
}
`, map[string]string{
		"src/lib.rs": "pub fn ping() {}\n",
	}))

	out, err := Assemble(st.Graph, st.BinCrate)
	require.NoError(t, err)
	assert.Equal(t, `use self::my_lib::ping;

fn main() {
    ping();
}

mod my_lib {
pub fn ping() {}
}
`, out)
}

func TestAssembleGroupsByKind(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`fn helper() {}

const LIMIT: i32 = 10;

struct State {
    n: i32,
}

impl State {
    fn new() -> State {
        State { n: LIMIT }
    }
}

fn main() {
    let _s = State::new();
    helper();
}

static NAME: &str = "x";
`, map[string]string{
		"src/lib.rs": "pub fn nop() {}\n",
	}))

	out, err := Assemble(st.Graph, st.BinCrate)
	require.NoError(t, err)

	order := []int{
		mustIndex(t, out, "const LIMIT"),
		mustIndex(t, out, "static NAME"),
		mustIndex(t, out, "fn helper"),
		mustIndex(t, out, "fn main"),
		mustIndex(t, out, "struct State"),
		mustIndex(t, out, "impl State"),
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i], "kinds are grouped in a fixed order")
	}
}

func TestAssembleAttachesImplsToTypes(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(goMain, map[string]string{
		"src/lib.rs": `pub struct Go;

impl Go {
    pub fn new() -> Go {
        Go
    }
}

pub trait Render {
    fn render(&self);
}

impl Render for Go {
    fn render(&self) {}
}
`,
	}))

	out, err := Assemble(st.Graph, st.BinCrate)
	require.NoError(t, err)

	trait := mustIndex(t, out, "pub trait Render")
	structDecl := mustIndex(t, out, "pub struct Go")
	traitImpl := mustIndex(t, out, "impl Render for Go")
	inherent := mustIndex(t, out, "impl Go {")
	assert.Less(t, trait, structDecl)
	assert.Less(t, structDecl, traitImpl, "impls follow their type")
	assert.Less(t, traitImpl, inherent, "trait impls come before inherent ones")
}

func TestAssembleRebuildsPartialImpl(t *testing.T) {
	opts := testOptions(t)
	opts.Config = &Config{ExcludeImplItems: []string{"Go::unused"}}
	st, _ := analyzeState(t, opts, nil, challengeFiles(goMain, map[string]string{
		"src/lib.rs": `pub struct Go;

impl Go {
    pub fn new() -> Go {
        Go
    }

    pub fn unused(&self) {}
}
`,
	}))

	out, err := Assemble(st.Graph, st.BinCrate)
	require.NoError(t, err)
	assert.Contains(t, out, "impl Go {\npub fn new() -> Go {")
	assert.NotContains(t, out, "fn unused")
}

func TestAssembleRewritesCrateRootedBodies(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`use my_lib::run;

fn main() {
    let _v = run();
}
`, map[string]string{
		"src/lib.rs": `pub mod util;

pub fn run() -> i32 {
    crate::util::value()
}
`,
		"src/util.rs": "pub fn value() -> i32 {\n    7\n}\n",
	}))

	out, err := Assemble(st.Graph, st.BinCrate)
	require.NoError(t, err)
	assert.Contains(t, out, "crate::my_lib::util::value()")
	assert.NotContains(t, out, "crate::util::value()")
	assert.Less(t, mustIndex(t, out, "pub fn run"), mustIndex(t, out, "pub mod util {"),
		"functions precede modules inside a container")
}

func TestRewriteCrateRefs(t *testing.T) {
	cases := []struct {
		name string
		src  string
		lib  string
		want string
	}{
		{"body path", "fn f() { crate::util::value() }", "my_lib", "fn f() { crate::my_lib::util::value() }"},
		{"leading", "crate::x", "my_lib", "crate::my_lib::x"},
		{"macro metavariable", "macro_rules! m { () => { $crate::v() }; }", "my_lib", "macro_rules! m { () => { $crate::v() }; }"},
		{"identifier suffix", "fn g() { my_crate::x() }", "my_lib", "fn g() { my_crate::x() }"},
		{"binary crate", "fn f() { crate::util::value() }", "", "fn f() { crate::util::value() }"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rewriteCrateRefs(tc.src, tc.lib))
		})
	}
}

func TestAssembleDedupesExpandedImports(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, challengeFiles(`use my_lib::geo::Point;
use my_lib::geo::*;

fn main() {
    let _p = Point { x: 1 };
    let _c = Coord { y: 2 };
}
`, map[string]string{
		"src/lib.rs": "pub mod geo;\n",
		"src/geo.rs": `pub struct Point {
    pub x: i32,
}

pub struct Coord {
    pub y: i32,
}
`,
	}))

	out, err := Assemble(st.Graph, st.BinCrate)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "use self::my_lib::geo::Point;"),
		"glob expansion and an explicit import collapse to one line")
	assert.Contains(t, out, "use self::my_lib::geo::Coord;")
}

func TestAssembleBinaryModulesBeforeLibraries(t *testing.T) {
	opts := testOptions(t)
	files := challengeFiles(`mod util;

use my_lib::ping;
use util::double;

fn main() {
    let _d = double(2);
    ping();
}
`, map[string]string{
		"src/lib.rs": "pub fn ping() {}\n",
	})
	files["challenge/src/util.rs"] = "pub fn double(n: i32) -> i32 {\n    n * 2\n}\n"
	st, _ := analyzeState(t, opts, nil, files)

	out, err := Assemble(st.Graph, st.BinCrate)
	require.NoError(t, err)
	assert.Contains(t, out, "use self::my_lib::ping;")
	assert.Contains(t, out, "use self::util::double;")
	assert.Less(t, mustIndex(t, out, "mod util {"), mustIndex(t, out, "mod my_lib {"),
		"the binary's own modules stay ahead of fused libraries")
}

func TestAssembleOrdersLibrariesDeterministically(t *testing.T) {
	opts := testOptions(t)
	st, _ := analyzeState(t, opts, nil, map[string]string{
		"challenge/Cargo.toml": `[package]
name = "challenge"
version = "0.1.0"
edition = "2021"

[dependencies]
beta = { path = "../beta" }
alpha = { path = "../alpha" }
`,
		"challenge/src/main.rs": `use alpha::first;
use beta::second;

fn main() {
    first();
    second();
}
`,
		"alpha/Cargo.toml": "[package]\nname = \"alpha\"\nversion = \"0.1.0\"\nedition = \"2021\"\n",
		"alpha/src/lib.rs": "pub fn first() {}\n",
		"beta/Cargo.toml":  "[package]\nname = \"beta\"\nversion = \"0.1.0\"\nedition = \"2021\"\n",
		"beta/src/lib.rs":  "pub fn second() {}\n",
	})

	out, err := Assemble(st.Graph, st.BinCrate)
	require.NoError(t, err)
	assert.Less(t, mustIndex(t, out, "mod alpha {"), mustIndex(t, out, "mod beta {"),
		"library modules come out in sorted dependency order")
}
