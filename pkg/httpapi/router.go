// Package httpapi implements the HTTP control surface: device
// management over gorilla/mux, embedded static assets, and the
// process-wide agent events namespace.
package httpapi

import (
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/sunO2/scrs/pkg/devicepool"
)

// Server wires the device pool into an HTTP router.
type Server struct {
	pool   *devicepool.Pool
	router *mux.Router
}

func NewServer(pool *devicepool.Pool) *Server {
	s := &Server{pool: pool, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.HandleFunc("/hello", s.handleHello).Methods(http.MethodGet)
	s.router.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	s.router.HandleFunc("/connect", s.handleConnect).Methods(http.MethodPost)
	s.router.HandleFunc("/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	s.router.HandleFunc("/device/{serial}/status", s.handleDeviceStatus).Methods(http.MethodGet)

	assets, err := fs.Sub(staticAssets, "assets")
	if err != nil {
		log.Fatal().Err(err).Msg("embedded static assets missing")
	}
	s.router.PathPrefix("/web/").Handler(http.StripPrefix("/web/", http.FileServer(http.FS(assets))))
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("scrs device control server"))
}

type deviceSummary struct {
	Serial string             `json:"serial"`
	Status devicepool.Status  `json:"status"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	entries := s.pool.Entries()
	devices := make([]deviceSummary, 0, len(entries))
	for _, e := range entries {
		devices = append(devices, deviceSummary{Serial: e.Serial, Status: e.Status})
	}
	writeOK(w, map[string]interface{}{"devices": devices, "count": len(devices)})
}

type serialRequest struct {
	Serial string `json:"serial"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req serialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Serial == "" {
		writeError(w, http.StatusBadRequest, "serial is required")
		return
	}

	if err := s.pool.ConnectDevice(req.Serial); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	entry, _ := s.pool.Entry(req.Serial)
	port := 0
	if entry.Session != nil {
		port = entry.Session.Port()
	}
	writeOK(w, map[string]interface{}{"serial": req.Serial, "socketio_port": port})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req serialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Serial == "" {
		writeError(w, http.StatusBadRequest, "serial is required")
		return
	}

	if err := s.pool.DisconnectDevice(req.Serial); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeOK(w, req.Serial)
}

func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	serial := mux.Vars(r)["serial"]

	entry, ok := s.pool.Entry(serial)
	if !ok {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	writeOK(w, map[string]interface{}{"serial": serial, "status": entry.Status})
}

func statusForError(err error) int {
	poolErr, ok := err.(*devicepool.Error)
	if !ok {
		return http.StatusInternalServerError
	}

	switch poolErr.Kind {
	case devicepool.ErrDeviceNotFound:
		return http.StatusNotFound
	case devicepool.ErrDeviceAlreadyExists, devicepool.ErrDeviceAlreadyConnected, devicepool.ErrDeviceNotConnected:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
