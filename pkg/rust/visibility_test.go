package rust

import "testing"

func TestParseVisibility(t *testing.T) {
	tests := []struct {
		src  string
		kind VisKind
		path string
	}{
		{"", VisPrivate, ""},
		{"pub", VisPub, ""},
		{"pub(crate)", VisCrate, ""},
		{"pub(super)", VisSuper, ""},
		{"pub(self)", VisPrivate, ""},
		{"pub(in crate::gate)", VisRestricted, "crate::gate"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			vis := ParseVisibility(tt.src)
			if vis.Kind != tt.kind {
				t.Errorf("kind = %d, want %d", vis.Kind, tt.kind)
			}
			if got := vis.Path.String(); got != tt.path {
				t.Errorf("path = %q, want %q", got, tt.path)
			}
		})
	}
}

func TestVisibilityRoundTrip(t *testing.T) {
	for _, src := range []string{"pub", "pub(crate)", "pub(super)", "pub(in crate::gate)"} {
		if got := ParseVisibility(src).String(); got != src {
			t.Errorf("round trip %q = %q", src, got)
		}
	}
}

func TestPathHelpers(t *testing.T) {
	p := ParsePath("crate::gate::Gate")
	if len(p) != 3 || p.First() != "crate" || p.Last() != "Gate" {
		t.Fatalf("parsed path = %v", p)
	}

	joined := p[:2].Join("Wire")
	if joined.String() != "crate::gate::Wire" {
		t.Errorf("joined = %q", joined)
	}
	if p.String() != "crate::gate::Gate" {
		t.Errorf("join must not mutate the receiver: %q", p)
	}

	clone := p.Clone()
	clone[0] = "self"
	if p.First() != "crate" {
		t.Errorf("clone must be independent")
	}

	if !p.Equal(ParsePath("crate::gate::Gate")) {
		t.Errorf("equal paths not reported equal")
	}
	if p.Equal(ParsePath("crate::gate")) {
		t.Errorf("different lengths reported equal")
	}
}
