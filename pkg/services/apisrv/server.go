// Package apisrv exposes the multisig coordinator over a JSON HTTP API.
package apisrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/0xMiden/MultiSig/pkg/engine"
	"github.com/0xMiden/MultiSig/pkg/miden"
)

// Config holds the HTTP API server settings.
type Config struct {
	// Listen is the address the server binds to.
	Listen string
	// NetworkID is the bech32 prefix every address on the wire must carry.
	NetworkID miden.NetworkID
	// CORSAllowedOrigins enables CORS handling when non-empty; "*" allows
	// any origin.
	CORSAllowedOrigins []string
	// Log is the logger, zap.NewNop when nil.
	Log *zap.Logger
}

// Server is the multisig HTTP API server.
type Server struct {
	*http.Server

	config  Config
	engine  *engine.Engine
	log     *zap.Logger
	started *atomic.Bool
	errChan chan<- error
}

// New creates a Server serving the engine's operations. Startup errors are
// returned via errChan passed here.
func New(cfg Config, e *engine.Engine, errChan chan<- error) *Server {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		Server:  &http.Server{Addr: cfg.Listen},
		config:  cfg,
		engine:  e,
		log:     log,
		started: atomic.NewBool(false),
		errChan: errChan,
	}
	s.Handler = s.newHandler()
	return s
}

func (s *Server) newHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.instrument("health", get(s.handleHealth)))
	mux.HandleFunc("/api/v1/multisig-account/create", s.instrument("create_account", post(s.handleCreateAccount)))
	mux.HandleFunc("/api/v1/multisig-account/details", s.instrument("account_details", post(s.handleAccountDetails)))
	mux.HandleFunc("/api/v1/multisig-account/approver/list", s.instrument("approver_list", post(s.handleApproverList)))
	mux.HandleFunc("/api/v1/multisig-tx/propose", s.instrument("propose_tx", post(s.handleProposeTx)))
	mux.HandleFunc("/api/v1/multisig-tx/stats", s.instrument("tx_stats", post(s.handleTxStats)))
	mux.HandleFunc("/api/v1/multisig-tx/list", s.instrument("tx_list", post(s.handleTxList)))
	mux.HandleFunc("/api/v1/signature/add", s.instrument("add_signature", post(s.handleAddSignature)))
	mux.HandleFunc("/api/v1/consumable-notes/list", s.instrument("consumable_notes", post(s.handleConsumableNotes)))

	if len(s.config.CORSAllowedOrigins) == 0 {
		return mux
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// Start creates a listener on the configured address and serves requests.
// It returns its errors via the errChan passed to New. The Server only
// starts once, subsequent calls to Start are no-op.
func (s *Server) Start() {
	if !s.started.CAS(false, true) {
		s.log.Info("api server already started")
		return
	}
	s.log.Info("starting api server", zap.String("endpoint", s.Addr))
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.errChan <- err
		return
	}
	s.Addr = ln.Addr().String() // set Addr to the actual address
	go func() {
		err := s.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("failed to start api server", zap.Error(err))
			s.errChan <- err
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests to finish. It
// can only be called once, subsequent calls are no-op.
func (s *Server) Shutdown() {
	if !s.started.CAS(true, false) {
		return
	}
	s.log.Info("shutting down api server", zap.String("endpoint", s.Addr))
	if err := s.Server.Shutdown(context.Background()); err != nil {
		s.log.Warn("error during api server shutdown", zap.Error(err))
	}
}

// get admits GET requests only.
func get(h http.HandlerFunc) http.HandlerFunc {
	return allowMethod(http.MethodGet, h)
}

// post admits POST requests only.
func post(h http.HandlerFunc) http.HandlerFunc {
	return allowMethod(http.MethodPost, h)
}

func allowMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// decode reads the JSON request body into dst, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.badRequest(w, r, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Warn("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

// writeError maps an engine error kind to a status code and answers with a
// JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		switch engErr.Kind {
		case engine.KindValidation:
			status = http.StatusBadRequest
		case engine.KindNotFound:
			status = http.StatusNotFound
		}
	}
	switch status {
	case http.StatusBadRequest:
		s.log.Warn("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	case http.StatusNotFound:
		s.log.Info("entity not found", zap.String("path", r.URL.Path), zap.Error(err))
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to write response", zap.Error(err))
	}
}
