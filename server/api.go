package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"vacuum/grid_world"
	"vacuum/simulation"

	"github.com/gorilla/mux"
)

// Message is sent by the page over the websocket:
//
//	{"type":"edit","row":3,"col":4,"mode":"dirt"}
//	{"type":"control","action":"start"}
type Message struct {
	Type   string `json:"type"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Mode   string `json:"mode"`
	Action string `json:"action"`
}

// EditRequest is the body of POST /api/edit.
type EditRequest struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Mode string `json:"mode"`
}

// ErrUnknownMessage is returned for messages of an unrecognized type.
var ErrUnknownMessage = errors.New("unknown message type")

func (server *Server) edit(ctx context.Context, row, col int, mode string) error {
	editMode, err := simulation.ParseEditMode(mode)
	if err != nil {
		return err
	}
	return server.sim.ApplyEdit(ctx, grid_world.Cell{Row: row, Col: col}, editMode)
}

func (server *Server) control(ctx context.Context, action string) error {
	ctl, err := simulation.ParseControl(action)
	if err != nil {
		return err
	}
	return server.sim.Control(ctx, ctl)
}

func (server *Server) dispatch(ctx context.Context, msg Message) error {
	switch msg.Type {
	case "edit":
		return server.edit(ctx, msg.Row, msg.Col, msg.Mode)
	case "control":
		return server.control(ctx, msg.Action)
	}
	return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
}

// handleMessage applies a websocket message. Bad messages are logged and dropped;
// only a stopped simulation ends the connection.
func (server *Server) handleMessage(ctx context.Context, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		server.log.Warn().Err(err).Msg("malformed client message")
		return nil
	}

	err := server.dispatch(ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, simulation.ErrRunnerStopped):
		return err
	case errors.Is(err, grid_world.ErrOutOfBounds), errors.Is(err, simulation.ErrAgentCell):
		server.log.Debug().Err(err).Msg("edit ignored")
	default:
		server.log.Warn().Err(err).Str("type", msg.Type).Msg("client message rejected")
	}
	return nil
}

func (server *Server) serveTelemetry(w http.ResponseWriter, r *http.Request) {
	server.writeTelemetry(r.Context(), w, nil)
}

func (server *Server) serveControl(w http.ResponseWriter, r *http.Request) {
	err := server.control(r.Context(), mux.Vars(r)["action"])
	server.writeTelemetry(r.Context(), w, err)
}

func (server *Server) serveEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed edit: " + err.Error()})
		return
	}
	err := server.edit(r.Context(), req.Row, req.Col, req.Mode)
	server.writeTelemetry(r.Context(), w, err)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeTelemetry replies with @err mapped to a status, or the current telemetry.
func (server *Server) writeTelemetry(ctx context.Context, w http.ResponseWriter, err error) {
	if err != nil {
		writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
		return
	}

	snap, err := server.sim.Snapshot(ctx)
	if err != nil {
		writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap.Telemetry())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, simulation.ErrUnknownControl),
		errors.Is(err, simulation.ErrUnknownEditMode),
		errors.Is(err, grid_world.ErrOutOfBounds):
		return http.StatusBadRequest
	case errors.Is(err, simulation.ErrAgentCell):
		return http.StatusConflict
	}
	return http.StatusServiceUnavailable
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
