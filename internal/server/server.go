// Package server exposes the pipeline and the active session over a small
// JSON API for a dashboard front end.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/logging"
	"github.com/KaramelBytes/chartloom-cli/internal/parser"
	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/KaramelBytes/chartloom-cli/internal/producer"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
)

// Config holds what the API serves.
type Config struct {
	Pipeline *pipeline.Pipeline
	Session  *session.Session
	Logger   *slog.Logger
	// MaxBodyBytes bounds request bodies; 0 means 10 MiB.
	MaxBodyBytes int64
	// SessionFile, when set, receives the session after every commit.
	SessionFile string
}

// Server is the HTTP API.
type Server struct {
	cfg Config
	log *slog.Logger
	mux *http.ServeMux
}

// New wires the routes.
func New(cfg Config) *Server {
	if cfg.Pipeline == nil {
		cfg.Pipeline = pipeline.New(pipeline.DefaultOptions())
	}
	if cfg.Session == nil {
		cfg.Session = session.New("default")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{cfg: cfg, log: log, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api/input", s.handleInput)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("GET /api/view", s.handleView)
	s.mux.HandleFunc("GET /api/profile", s.handleProfile)
	s.mux.HandleFunc("GET /api/insight-prompt", s.handleInsightPrompt)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	s.mux.ServeHTTP(sw, r)
	s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", sw.code, "took", time.Since(start))
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

type inputRequest struct {
	Seq  *uint64 `json:"seq,omitempty"`
	Kind string  `json:"kind"`
	Text string  `json:"text"`
}

type viewResponse struct {
	Seq uint64 `json:"seq"`
	pipeline.View
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	kind := pipeline.KindJSON
	if req.Kind != "" {
		k, err := pipeline.ParseKind(req.Kind)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		kind = k
	}
	var seq uint64
	if req.Seq != nil {
		seq = *req.Seq
	} else {
		seq = s.cfg.Session.NextSeq()
	}
	view, err := s.cfg.Pipeline.RunText(kind, req.Text)
	if err == nil {
		err = s.cfg.Session.Commit(seq, view)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist()
	writeJSON(w, http.StatusOK, viewResponse{Seq: seq, View: view})
}

// handleUpload takes a raw file body; ?name= decides JSON vs CSV.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Query().Get("name"))
	if name == "." || name == "/" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name parameter required"})
		return
	}
	p := producer.FileProducer{Path: name, Reader: r.Body, MaxBytes: s.cfg.MaxBodyBytes}
	view, seq, err := producer.Apply(r.Context(), p, s.cfg.Pipeline, s.cfg.Session)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.persist()
	writeJSON(w, http.StatusOK, viewResponse{Seq: seq, View: view})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, seq, ok := s.cfg.Session.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{Seq: seq, View: view})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.cfg.Session.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	rep := analysis.Profile(s.cfg.Session.Name(), view.Data, analysis.DefaultOptions())
	rep.Axes = &view.Axes
	rep.Description = view.Description
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(rep.Markdown()))
}

func (s *Server) handleInsightPrompt(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.cfg.Session.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	req, err := producer.InsightPrompt(view.Data)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": req.Prompt})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": s.cfg.Session.ID()})
}

func (s *Server) persist() {
	if s.cfg.SessionFile == "" {
		return
	}
	if err := s.cfg.Session.Save(s.cfg.SessionFile); err != nil {
		s.log.Warn("session not saved", "path", s.cfg.SessionFile, "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrNoData), errors.Is(err, parser.ErrInvalidJSON):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrStale):
		code = http.StatusConflict
	case errors.Is(err, parser.ErrTooLarge), errors.As(err, &maxErr):
		code = http.StatusRequestEntityTooLarge
	}
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	} else {
		s.log.Debug("input rejected", "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
