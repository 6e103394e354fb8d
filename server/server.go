// Package server serves live training progress: an index page fed over websocket
// with every agent's rounds and values grid, a JSON status endpoint, Prometheus
// metrics and a reward chart.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"rlgym/plotting"
	"rlgym/reinforcement"
	"rlgym/server/cell_views"
	"rlgym/server/fastview"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

const shutdownGracePeriod = 2 * time.Second

// Server serves the progress of a Board.
type Server struct {
	addr   string
	title  string
	board  *Board
	pages  *template.Template
	router *mux.Router
}

// NewServer builds the routes for board.
func NewServer(addr, title string, board *Board) *Server {
	server := &Server{
		addr:  addr,
		title: title,
		board: board,
		pages: parsePages(board.ValuesView()),
	}

	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/values", server.serveValues).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	router.HandleFunc("/status", server.serveStatus).Methods(http.MethodGet)
	router.HandleFunc("/chart", server.serveChart).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())
	server.router = router
	return server
}

// Handler returns the server's router.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		klog.InfoS("Serving training progress", "addr", server.addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes board snapshots to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	snapshots := server.board.Subscribe(r.Context())
	cli, err := fastview.NewClient(snapshots, w, r)
	if err != nil {
		klog.ErrorS(err, "Websocket upgrade failed")
		return
	}
	if err := cli.Sync(); err != nil {
		klog.V(1).InfoS("Websocket client ended", "err", err)
	}
}

func (server *Server) serveStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(server.board.Status()); err != nil {
		klog.ErrorS(err, "Status encoding failed")
	}
}

func (server *Server) serveChart(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := plotting.Render(w, server.title, server.board.Results()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type indexData struct {
	Title  string
	Rounds []reinforcement.Round
	Grids  []cell_views.Cells
}

func (server *Server) serveIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	data := indexData{
		Title:  server.title,
		Rounds: server.board.Rounds(),
		Grids:  server.board.Grids(),
	}
	if err := server.pages.Execute(w, data); err != nil {
		_, _ = w.Write([]byte(err.Error()))
	}
}

// serveValues renders the values grids alone, for clients to pick up agents that
// reported after the page was loaded.
func (server *Server) serveValues(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := server.pages.ExecuteTemplate(w, "grids", server.board.Grids()); err != nil {
		_, _ = w.Write([]byte(err.Error()))
	}
}

// parsePages builds the index page, which includes the values grid view.
func parsePages(grid *cell_views.ValuesGrid) *template.Template {
	pages := template.New("index.html")
	name, err := grid.Parse(pages)
	if err != nil {
		panic(err)
	}
	return template.Must(pages.Parse(`{{ define "grids" }}{{ range . }}{{ template "` + name + `" . }}{{ end }}{{ end }}` + indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>{{ .Title }}</title>
	<style>
		body { font-family: monospace; }
		td, th { padding: 2px 12px; text-align: right; }
		.values-grid { display: inline-block; padding: 12px; }
	</style>
</head>
<body>
	<h3>{{ .Title }}</h3>
	<p><a href="/chart">reward chart</a> | <a href="/status">status</a> | <a href="/metrics">metrics</a></p>
	<table>
		<thead>
			<tr><th>agent</th><th>round</th><th>steps</th><th>mean return</th><th>mean reward</th><th>max reward</th><th>epsilon</th></tr>
		</thead>
		<tbody id="rounds">
		{{ range .Rounds }}
			<tr><td>{{ .Agent }}</td><td>{{ .Iteration }}</td><td>{{ .Steps }}</td><td>{{ printf "%.3f" .MeanReturn }}</td><td>{{ printf "%.3f" .MeanReward }}</td><td>{{ printf "%.1f" .MaxReward }}</td><td>{{ printf "%.3f" .Epsilon }}</td></tr>
		{{ end }}
		</tbody>
	</table>
	<div id="grids">{{ template "grids" .Grids }}</div>
	<script>
		const fmt = (v, d) => Number(v).toFixed(d);
		let reloading = false;
		const reloadGrids = () => {
			if (reloading) {
				return;
			}
			reloading = true;
			fetch("/values")
				.then(resp => resp.text())
				.then(html => { document.getElementById("grids").innerHTML = html; })
				.finally(() => { reloading = false; });
		};
		const applyUpdates = (updates) => {
			let missing = false;
			for (const update of updates) {
				const ele = document.getElementById(update.EleId);
				if (!ele) {
					missing = true;
					continue;
				}
				for (const op of update.Ops) {
					if (op.Key === "textContent") {
						ele.textContent = op.Value;
					} else {
						ele.setAttribute(op.Key, op.Value);
					}
				}
			}
			if (missing) {
				reloadGrids();
			}
		};
		const ws = new WebSocket("ws://" + location.host + "/ws");
		ws.onmessage = (event) => {
			const snapshot = JSON.parse(event.data);
			const rounds = snapshot.rounds || [];
			document.getElementById("rounds").innerHTML = rounds.map(r =>
				"<tr><td>" + r.Agent + "</td><td>" + r.Iteration + "</td><td>" + r.Steps +
				"</td><td>" + fmt(r.MeanReturn, 3) + "</td><td>" + fmt(r.MeanReward, 3) +
				"</td><td>" + fmt(r.MaxReward, 1) + "</td><td>" + fmt(r.Epsilon, 3) + "</td></tr>"
			).join("");
			applyUpdates(snapshot.values || []);
		};
	</script>
</body>
</html>
`
