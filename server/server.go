package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"miro_ideation_relay/logging"
	"miro_ideation_relay/pipeline"
)

const (
	serviceName    = "miro-openai-api"
	apiName        = "AI Ideation Assistant API"
	apiVersion     = "1.0.0"
	maxRequestBody = 1 << 20
)

// Pipeline is the request processing the HTTP surface exposes.
type Pipeline interface {
	Ideate(ctx context.Context, req pipeline.IdeateRequest) (*pipeline.IdeasResult, error)
	Sketches(ctx context.Context, req pipeline.ImageRequest) (*pipeline.SketchResult, error)
	ImageIdeas(ctx context.Context, req pipeline.ImageRequest) (*pipeline.PublishResult, error)
}

type Server struct {
	pipeline Pipeline
	logger   *logging.Logger
	now      func() time.Time
}

func New(p Pipeline, logger *logging.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline required")
	}
	return &Server{pipeline: p, logger: logger, now: time.Now}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /generate-ideas", s.handleIdeas)
	mux.HandleFunc("POST /generate-text2image-sketches", s.handleSketches)
	mux.HandleFunc("POST /generate-image-ideas", s.handleImageIdeas)
	mux.HandleFunc("/", s.handleNotFound)
	return logMiddleware(s.logger, recoverMiddleware(s.logger, mux))
}

// HTTPServer wraps Routes with connection timeouts. Write timeout stays
// unset since image generation can take more than a minute.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// --- Handlers ---

type errorResp struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type healthResp struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
	Service   string  `json:"service"`
}

type rootResp struct {
	Status    string   `json:"status"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResp{
		Status:  "ok",
		Name:    apiName,
		Version: apiVersion,
		Endpoints: []string{
			"/health",
			"/generate-ideas",
			"/generate-image-ideas",
			"/generate-text2image-sketches",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	writeJSON(w, http.StatusOK, healthResp{
		Status:    "ok",
		Timestamp: float64(now.UnixNano()) / 1e9,
		Service:   serviceName,
	})
}

func (s *Server) handleIdeas(w http.ResponseWriter, r *http.Request) {
	var req pipeline.IdeateRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.pipeline.Ideate(detach(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSketches(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ImageRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.pipeline.Sketches(detach(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleImageIdeas(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ImageRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.pipeline.ImageIdeas(detach(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResp{
		Status: "error",
		Error:  fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
	})
}

// --- Helpers ---

// detach keeps request values but drops cancellation: a client hanging up
// must not abort generation or a board write halfway through.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		msg := "Invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "No JSON data provided"
		}
		writeJSON(w, http.StatusBadRequest, errorResp{Status: "error", Error: msg, Details: err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *pipeline.ValidationError
		fe *pipeline.FetchError
		ge *pipeline.GenerationError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResp{Status: "error", Error: ve.Msg})
	case errors.As(err, &fe):
		msg := "Failed to fetch board items"
		if code := fe.StatusCode(); code != 0 {
			msg = fmt.Sprintf("%s: %d", msg, code)
		}
		s.logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Status: "error", Error: msg, Details: err.Error()})
	case errors.As(err, &ge):
		s.logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Status: "error", Error: "OpenAI API error", Details: ge.Err.Error()})
	default:
		s.logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Status: "error", Error: "Internal server error", Details: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func logMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		logger.Infof("%s %s %d %s id=%s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond), id)
	})
}

// recoverMiddleware turns a panic into the same structured 500 as any other
// unexpected error.
func recoverMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.Errorf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, v, debug.Stack())
			writeJSON(w, http.StatusInternalServerError, errorResp{
				Status:  "error",
				Error:   "Internal server error",
				Details: fmt.Sprint(v),
			})
		}()
		next.ServeHTTP(w, r)
	})
}
