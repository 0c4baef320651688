package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cgfuse/cgfuse/pkg/fusion"
	pkgio "github.com/cgfuse/cgfuse/pkg/io"
	"github.com/cgfuse/cgfuse/pkg/render"
)

// indexPage is the HTML shell of the graph viewer. The SVG is fetched from
// /graph.svg; ?full=1 switches from the required subgraph to everything.
const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>cgfuse · %s</title>
<style>
  body { margin: 0; font: 14px/1.4 system-ui, sans-serif; background: #1b1b1f; color: #d4d4d8; }
  header { padding: 12px 20px; border-bottom: 1px solid #333; display: flex; gap: 16px; align-items: baseline; }
  header h1 { font-size: 16px; margin: 0; color: #4ec9b0; }
  header a { color: #6aa6e8; text-decoration: none; }
  header a:hover { text-decoration: underline; }
  main { padding: 20px; }
  main img { width: 100%%; height: auto; background: #fff; border-radius: 6px; }
</style>
</head>
<body>
<header>
  <h1>%s</h1>
  <a href="/?full=1">full graph</a>
  <a href="/">required only</a>
  <a href="/api/nodes">nodes.json</a>
  <a href="/api/required">required.json</a>
</header>
<main><img src="/graph.svg%s" alt="challenge graph"></main>
</body>
</html>
`

// svgVariant caches one rendered SVG. Rendering shells out to the embedded
// Graphviz once; the graph does not change while the viewer runs.
type svgVariant struct {
	once sync.Once
	data []byte
	err  error
}

// graphServer serves the analyze result over HTTP.
type graphServer struct {
	st       *fusion.State
	full     svgVariant
	required svgVariant
}

// serveGraph serves the interactive graph viewer until ctx is canceled.
func (c *CLI) serveGraph(ctx context.Context, st *fusion.State, addr string) error {
	gs := &graphServer{st: st}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", gs.handleIndex)
	r.Get("/graph.svg", gs.handleSVG)
	r.Get("/api/nodes", gs.handleNodes)
	r.Get("/api/required", gs.handleRequired)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	printNewline()
	printInfo("Graph viewer at %s", StyleLink.Render("http://"+addr))
	printDetail("ctrl+c to stop")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *graphServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	name := s.st.Workspace.Root.Name
	svgQuery := ""
	if r.URL.Query().Get("full") != "" {
		svgQuery = "?full=1"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexPage, name, name, svgQuery)
}

func (s *graphServer) handleSVG(w http.ResponseWriter, r *http.Request) {
	variant := &s.required
	requiredOnly := true
	if r.URL.Query().Get("full") != "" {
		variant = &s.full
		requiredOnly = false
	}

	variant.once.Do(func() {
		// Render detached from the request: a client gone mid-render must
		// not poison the cache for everyone after it.
		dot := render.ToDOT(s.st.Graph, render.Options{RequiredOnly: requiredOnly})
		variant.data, variant.err = render.RenderSVG(context.Background(), dot)
	})
	if variant.err != nil {
		http.Error(w, variant.err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(variant.data)
}

func (s *graphServer) handleNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, pkgio.Snapshot(s.st.Graph, false))
}

func (s *graphServer) handleRequired(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, pkgio.Snapshot(s.st.Graph, true))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
