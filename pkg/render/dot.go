// Package render turns the challenge graph into Graphviz DOT and SVG for
// the analyze command and the local graph viewer.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/cgfuse/cgfuse/pkg/graph"
)

// Options configures graph rendering.
type Options struct {
	// Detailed includes the node ID and kind in labels. When false, only
	// the payload label is shown.
	Detailed bool
	// RequiredOnly hides nodes that reachability analysis did not mark,
	// leaving the subgraph the fused output will contain.
	RequiredOnly bool
}

// Node fill colors by payload kind. Required nodes get a stronger border
// on top of their kind color.
var fillColors = map[string]string{
	graph.KindLocalPackage:        "gold",
	graph.KindExternalSupported:   "palegreen",
	graph.KindExternalUnsupported: "lightcoral",
	graph.KindBinaryCrate:         "lightskyblue",
	graph.KindLibraryCrate:        "lightskyblue",
	graph.KindSourceFile:          "lightgrey",
	graph.KindItem:                "white",
	graph.KindImplItem:            "whitesmoke",
	graph.KindTraitItem:           "whitesmoke",
}

// Edge styles by edge kind.
var edgeStyles = map[graph.EdgeKind]string{
	graph.EdgeDependency:     `[color=black, penwidth=2]`,
	graph.EdgeSyn:            `[color=grey40]`,
	graph.EdgeUse:            `[color=blue, style=dashed]`,
	graph.EdgeImplementation: `[color=darkgreen, style=dotted]`,
	graph.EdgeRequired:       `[color=red, style=dashed, arrowsize=0.5]`,
}

// ToDOT converts the challenge graph to Graphviz DOT format. The result
// can be rendered with [RenderSVG] or fed to an external dot binary.
//
// Required edges fan out from the root to every kept node and drown the
// structure at any interesting graph size, so they are only emitted in
// RequiredOnly mode where the root's fan-out is the point.
func ToDOT(g *graph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph challenge {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	keep := make(map[graph.NodeID]bool)
	for _, id := range g.NodeIDs() {
		if opts.RequiredOnly && !g.IsRequired(id) {
			continue
		}
		keep[id] = true
		p, _ := g.Payload(id)
		fmt.Fprintf(&buf, "  %d [%s];\n", id, strings.Join(nodeAttrs(g, id, p, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if !keep[e.From] || !keep[e.To] {
			continue
		}
		if e.Kind == graph.EdgeRequired && !opts.RequiredOnly {
			continue
		}
		fmt.Fprintf(&buf, "  %d -> %d %s;\n", e.From, e.To, edgeStyles[e.Kind])
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(g *graph.Graph, id graph.NodeID, p graph.Payload, opts Options) []string {
	kind := graph.PayloadKind(p)
	label := p.Label()
	if opts.Detailed {
		label = fmt.Sprintf("%s\n#%d %s", label, id, kind)
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if fill, ok := fillColors[kind]; ok {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
	}
	if g.IsRequired(id) && id != g.Root() {
		attrs = append(attrs, "penwidth=2", "color=red")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the opening svg tag so the document scales to
// its container instead of carrying Graphviz's absolute point sizes.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
