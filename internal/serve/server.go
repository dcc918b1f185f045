package serve

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dtnitsch/lens-scraper/internal/pipeline"
	"github.com/dtnitsch/lens-scraper/models"
	"github.com/dtnitsch/lens-scraper/pkg/artifact_manager"
	"github.com/dtnitsch/lens-scraper/pkg/manifest"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps the JSON body, base64 included.
const maxBodyBytes = 20 << 20

const statusMessage = "Lens scraper API is running. Use /analyze endpoint with a base64 encoded image."

// Analyzer is the pipeline surface the server drives.
type Analyzer interface {
	NewRequest() artifact_manager.Artifacts
	SaveImage(a artifact_manager.Artifacts, data []byte) error
	Run(ctx context.Context, a artifact_manager.Artifacts) (*manifest.Run, error)
	Cleanup(a artifact_manager.Artifacts)
}

type AnalyzeRequest struct {
	Image string `json:"image"`
}

type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type Server struct {
	logger   *slog.Logger
	analyzer Analyzer
	slots    *semaphore.Weighted
	limiter  *rate.Limiter
	cleanup  sync.WaitGroup
}

func NewServer(logger *slog.Logger, analyzer Analyzer, cfg models.ServerConfig) *Server {
	return &Server{
		logger:   logger,
		analyzer: analyzer,
		slots:    semaphore.NewWeighted(max(cfg.MaxConcurrent, 1)),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(cfg.Burst, 1)),
	}
}

// Handler routes GET / and POST /analyze.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	return requestLogger(s.logger, mux)
}

// Wait blocks until every scheduled artifact cleanup has finished.
func (s *Server) Wait() {
	s.cleanup.Wait()
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": statusMessage})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: "too many requests"})
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	data, err := decodeImage(req.Image)
	if err != nil {
		s.logger.Error("Failed to decode base64 image", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid base64 image"})
		return
	}

	if !s.slots.TryAcquire(1) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "all browser sessions are busy"})
		return
	}
	defer s.slots.Release(1)

	a := s.analyzer.NewRequest()
	log := s.logger.With("request_id", a.RequestID)
	log.Info("Processing new request")
	w.Header().Set("X-Request-ID", a.RequestID)

	if err := s.analyzer.SaveImage(a, data); err != nil {
		log.Error("Failed to save image", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Error processing request: " + err.Error()})
		return
	}
	defer s.scheduleCleanup(a)

	run, err := s.analyzer.Run(r.Context(), a)
	switch {
	case errors.Is(err, pipeline.ErrSearchFailed):
		log.Error("Visual search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Visual search failed"})
		return
	case err != nil:
		log.Error("Error processing request", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Error processing request: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{Analysis: run.Description})
}

// scheduleCleanup removes the request's artifacts once the response is out.
func (s *Server) scheduleCleanup(a artifact_manager.Artifacts) {
	s.cleanup.Add(1)
	go func() {
		defer s.cleanup.Done()
		s.analyzer.Cleanup(a)
	}()
}

// decodeImage accepts padded or unpadded standard base64, ignoring whitespace.
func decodeImage(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, errors.New("empty image")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}
