package rust

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cgfuse/cgfuse/pkg/errors"
)

const engineTestSource = `//! Engine internals.
#![allow(dead_code)]

use std::fmt;
use crate::gate::{Gate, Wire};
use super::*;
pub use rand as random;

extern crate itertools;

const MAX_STEPS: usize = 1024;

static NAME: &str = "engine";

type StepResult = Result<(), StepError>;

macro_rules! square {
    ($x:expr) => {
        $x * $x
    };
}

/// A single processing engine.
#[derive(Debug)]
pub struct Engine {
    steps: usize,
}

impl Engine {
    pub fn new() -> Engine {
        Engine { steps: 0 }
    }

    fn tick(&mut self) {
        self.advance();
    }

    fn advance(&mut self) {
        self.steps += 1;
    }
}

impl fmt::Display for Engine {
    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result {
        write!(f, "engine {}", self.steps)
    }
}

pub fn run(engine: Engine) -> StepResult {
    helper(&engine);
    gate::latch(engine)
}

mod gate;

mod inner {
    pub fn noop() {}
}

#[cfg(test)]
mod tests {
    #[test]
    fn smoke() {}
}
`

func mustParse(t *testing.T, src string, opts ParseOptions) *File {
	t.Helper()
	file, err := ParseSource(context.Background(), []byte(src), "test.rs", opts)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return file
}

func itemNamed(t *testing.T, items []*Item, name string) *Item {
	t.Helper()
	for _, it := range items {
		if it.Name == name {
			return it
		}
	}
	t.Fatalf("no item named %q", name)
	return nil
}

func itemsOfKind(items []*Item, kind ItemKind) []*Item {
	var out []*Item
	for _, it := range items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

func hasPathRef(refs []Ref, path string) bool {
	for _, r := range refs {
		if r.SelfMethod == "" && r.Path.String() == path {
			return true
		}
	}
	return false
}

func hasSelfRef(refs []Ref, name string) bool {
	for _, r := range refs {
		if r.SelfMethod == name {
			return true
		}
	}
	return false
}

func TestParseSource_EmptyFile(t *testing.T) {
	file := mustParse(t, "", ParseOptions{})
	if file.Path != "test.rs" {
		t.Errorf("path = %q, want test.rs", file.Path)
	}
	if len(file.Items) != 0 {
		t.Errorf("expected no items, got %d", len(file.Items))
	}
}

func TestParseSource_ItemInventory(t *testing.T) {
	file := mustParse(t, engineTestSource, ParseOptions{})

	wantKinds := []struct {
		kind  ItemKind
		count int
	}{
		{KindUse, 4},
		{KindExternCrate, 1},
		{KindConst, 1},
		{KindStatic, 1},
		{KindTypeAlias, 1},
		{KindMacro, 1},
		{KindStruct, 1},
		{KindImpl, 2},
		{KindFn, 1},
		{KindMod, 3},
	}
	for _, want := range wantKinds {
		got := len(itemsOfKind(file.Items, want.kind))
		if got != want.count {
			t.Errorf("%s items = %d, want %d", want.kind, got, want.count)
		}
	}

	if len(file.Attrs) != 1 || file.Attrs[0] != "#![allow(dead_code)]" {
		t.Errorf("file attrs = %v, want [#![allow(dead_code)]]", file.Attrs)
	}

	engine := itemNamed(t, file.Items, "Engine")
	if engine.Kind != KindStruct {
		t.Errorf("Engine kind = %s, want Struct", engine.Kind)
	}
	if !engine.Vis.IsPub() {
		t.Errorf("Engine visibility = %q, want pub", engine.Vis)
	}

	if sq := itemNamed(t, file.Items, "square"); sq.Kind != KindMacro {
		t.Errorf("square kind = %s, want Macro", sq.Kind)
	}
	if ec := itemNamed(t, file.Items, "itertools"); ec.Kind != KindExternCrate {
		t.Errorf("itertools kind = %s, want ExternCrate", ec.Kind)
	}
}

func TestParseSource_UseForms(t *testing.T) {
	file := mustParse(t, engineTestSource, ParseOptions{})
	uses := itemsOfKind(file.Items, KindUse)
	if len(uses) != 4 {
		t.Fatalf("use items = %d, want 4", len(uses))
	}

	want := []string{
		"std::fmt",
		"crate::gate::{Gate, Wire}",
		"super::*",
		"rand as random",
	}
	for i, w := range want {
		if uses[i].Use == nil {
			t.Fatalf("use %d has no tree", i)
		}
		if got := uses[i].Use.String(); got != w {
			t.Errorf("use %d = %q, want %q", i, got, w)
		}
	}

	if !uses[3].Vis.IsPub() {
		t.Errorf("re-export visibility = %q, want pub", uses[3].Vis)
	}
	if name := uses[3].Use.VisibleName(); name != "random" {
		t.Errorf("re-export visible name = %q, want random", name)
	}
}

func TestParseSource_ImplHeaders(t *testing.T) {
	file := mustParse(t, engineTestSource, ParseOptions{})
	impls := itemsOfKind(file.Items, KindImpl)
	if len(impls) != 2 {
		t.Fatalf("impl items = %d, want 2", len(impls))
	}

	inherent := impls[0]
	if inherent.Impl == nil || !inherent.Impl.IsInherent() {
		t.Fatalf("first impl should be inherent")
	}
	if got := inherent.Impl.SelfType.String(); got != "Engine" {
		t.Errorf("inherent self type = %q, want Engine", got)
	}
	if got := inherent.Label(); got != "impl Engine" {
		t.Errorf("inherent label = %q", got)
	}
	var names []string
	for _, child := range inherent.Items {
		names = append(names, child.Name)
	}
	if strings.Join(names, ",") != "new,tick,advance" {
		t.Errorf("inherent impl children = %v", names)
	}

	traitImpl := impls[1]
	if traitImpl.Impl == nil || traitImpl.Impl.IsInherent() {
		t.Fatalf("second impl should be a trait impl")
	}
	if got := traitImpl.Impl.Trait.String(); got != "fmt::Display" {
		t.Errorf("trait path = %q, want fmt::Display", got)
	}
	if got := traitImpl.Impl.SelfType.String(); got != "Engine" {
		t.Errorf("trait impl self type = %q, want Engine", got)
	}
	if got := traitImpl.Label(); got != "impl fmt::Display for Engine" {
		t.Errorf("trait impl label = %q", got)
	}
}

func TestParseSource_GenericImplStripped(t *testing.T) {
	src := `pub struct Holder<T> {
    value: T,
}

impl<T> Holder<T> {
    pub fn get(&self) -> &T {
        &self.value
    }
}
`
	file := mustParse(t, src, ParseOptions{})
	impls := itemsOfKind(file.Items, KindImpl)
	if len(impls) != 1 {
		t.Fatalf("impl items = %d, want 1", len(impls))
	}
	if got := impls[0].Impl.SelfType.String(); got != "Holder" {
		t.Errorf("self type = %q, want Holder (generics stripped)", got)
	}
}

func TestParseSource_Refs(t *testing.T) {
	file := mustParse(t, engineTestSource, ParseOptions{})

	run := itemNamed(t, file.Items, "run")
	for _, want := range []string{"helper", "gate::latch", "Engine", "StepResult"} {
		if !hasPathRef(run.Refs, want) {
			t.Errorf("run refs missing %q: %v", want, run.Refs)
		}
	}

	alias := itemNamed(t, file.Items, "StepResult")
	for _, want := range []string{"Result", "StepError"} {
		if !hasPathRef(alias.Refs, want) {
			t.Errorf("alias refs missing %q: %v", want, alias.Refs)
		}
	}

	engine := itemNamed(t, file.Items, "Engine")
	if hasPathRef(engine.Refs, "usize") {
		t.Errorf("primitive types should not be collected: %v", engine.Refs)
	}
}

func TestParseSource_SelfMethodRefs(t *testing.T) {
	file := mustParse(t, engineTestSource, ParseOptions{})
	inherent := itemsOfKind(file.Items, KindImpl)[0]

	tick := itemNamed(t, inherent.Items, "tick")
	if !hasSelfRef(tick.Refs, "advance") {
		t.Errorf("tick refs missing self.advance(): %v", tick.Refs)
	}

	display := itemsOfKind(file.Items, KindImpl)[1]
	fmtFn := itemNamed(t, display.Items, "fmt")
	if !hasPathRef(fmtFn.Refs, "write") {
		t.Errorf("fmt refs missing write! macro: %v", fmtFn.Refs)
	}
}

func TestParseSource_DocHandling(t *testing.T) {
	stripped := mustParse(t, engineTestSource, ParseOptions{StripDocComments: true})
	engine := itemNamed(t, stripped.Items, "Engine")
	if strings.Contains(engine.Src, "///") {
		t.Errorf("stripped source still contains doc comment: %q", engine.Src)
	}
	if !strings.Contains(engine.Src, "#[derive(Debug)]") {
		t.Errorf("stripped source lost derive attribute: %q", engine.Src)
	}

	kept := mustParse(t, engineTestSource, ParseOptions{})
	engine = itemNamed(t, kept.Items, "Engine")
	if !strings.Contains(engine.Src, "/// A single processing engine.") {
		t.Errorf("doc comment not kept: %q", engine.Src)
	}
	if !strings.Contains(engine.Src, "pub struct Engine") {
		t.Errorf("item body missing: %q", engine.Src)
	}
}

func TestParseSource_CfgTest(t *testing.T) {
	file := mustParse(t, engineTestSource, ParseOptions{})

	tests := itemNamed(t, file.Items, "tests")
	if !tests.CfgTest {
		t.Errorf("mod tests should carry CfgTest")
	}
	if run := itemNamed(t, file.Items, "run"); run.CfgTest {
		t.Errorf("run should not carry CfgTest")
	}
}

func TestParseSource_ModuleForms(t *testing.T) {
	file := mustParse(t, engineTestSource, ParseOptions{})

	gate := itemNamed(t, file.Items, "gate")
	if gate.Inline {
		t.Errorf("mod gate; should not be inline")
	}
	if len(gate.Items) != 0 {
		t.Errorf("file module should have no parsed children, got %d", len(gate.Items))
	}

	inner := itemNamed(t, file.Items, "inner")
	if !inner.Inline {
		t.Errorf("mod inner {} should be inline")
	}
	if len(inner.Items) != 1 || inner.Items[0].Name != "noop" {
		t.Errorf("inner children = %v", inner.Items)
	}
}

func TestParseSource_SyntaxError(t *testing.T) {
	_, err := ParseSource(context.Background(), []byte("fn broken( {\n"), "bad.rs", ParseOptions{})
	if err == nil {
		t.Fatal("expected error for malformed source")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeParse {
		t.Errorf("error code = %s, want %s", code, errors.ErrCodeParse)
	}
	if !strings.Contains(err.Error(), "bad.rs") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestParseSource_InvalidUTF8(t *testing.T) {
	_, err := ParseSource(context.Background(), []byte{0xff, 0xfe, 0xfd}, "bin.rs", ParseOptions{})
	if err == nil {
		t.Fatal("expected error for non-UTF-8 input")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeParse {
		t.Errorf("error code = %s, want %s", code, errors.ErrCodeParse)
	}
}

func TestParseFile_NotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.rs")
	_, err := ParseFile(context.Background(), missing, ParseOptions{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if code := errors.GetCode(err); code != errors.ErrCodeFileNotFound {
		t.Errorf("error code = %s, want %s", code, errors.ErrCodeFileNotFound)
	}
}
