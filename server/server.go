package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"vacuum/grid_world"
	"vacuum/server/cell_views"
	"vacuum/server/fastview"
	"vacuum/server/root_view"
	"vacuum/simulation"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Simulation is what the server drives: the runner's request API.
type Simulation interface {
	ApplyEdit(ctx context.Context, cell grid_world.Cell, mode simulation.EditMode) error
	Control(ctx context.Context, ctl simulation.Control) error
	Snapshot(ctx context.Context) (simulation.Snapshot, error)
}

// Server serves the room page, pushes its view updates to every open page over
// websocket, and accepts edits and controls from the page and a small JSON API.
type Server struct {
	addr     string
	sim      Simulation
	rootView *root_view.RootView
	broker   *Broker
	router   *mux.Router
	log      zerolog.Logger
}

// NewServer initializes all of the views over @snapshots and returns a server.
func NewServer(
	ctx context.Context,
	addr string,
	sim Simulation,
	snapshots <-chan simulation.Snapshot,
	logger zerolog.Logger,
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, snapshots)
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}

	server := &Server{
		addr:     addr,
		sim:      sim,
		rootView: rootView,
		broker:   NewBroker(rootView.Updates(), logger),
		log:      logger,
	}
	server.router = server.routes()
	return server, nil
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/telemetry", server.serveTelemetry).Methods(http.MethodGet)
	api.HandleFunc("/control/{action}", server.serveControl).Methods(http.MethodPost)
	api.HandleFunc("/edit", server.serveEdit).Methods(http.MethodPost)
	return router
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Broker returns the update broker; Serve runs it.
func (server *Server) Broker() *Broker {
	return server.broker
}

// Serve listens on the server's address until @ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.broker.Run(groupCtx)
	})
	group.Go(func() error {
		server.log.Info().Str("addr", server.addr).Msg("serving")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// serveWebsocket publishes view updates to the client and applies the edits and
// controls it sends, until either side closes.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	id, updates := server.broker.Subscribe()
	defer server.broker.Unsubscribe(id)

	cli, err := fastview.NewClient(updates, server.handleMessage, w, r)
	if err != nil {
		server.log.Error().Err(err).Str("client", id).Msg("websocket upgrade failed")
		return
	}

	log := server.log.With().Str("client", id).Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("client connected")
	if err = cli.Sync(); err != nil {
		log.Warn().Err(err).Msg("client sync failed")
	}
	cli.Close()
	log.Info().Msg("client disconnected")
}

// Serve the index.html main page, rendered from the current snapshot.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := server.sim.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, cell_views.Convert(snap)); err != nil {
		server.log.Error().Err(err).Msg("render index")
		_, _ = w.Write([]byte(err.Error()))
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
