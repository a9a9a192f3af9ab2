// Package server exposes the scan and approve pipeline over HTTP.
//
// Endpoints:
//
//	POST /api/scan        run a full duplicate scan, return the report
//	POST /api/approve     delete the approved file IDs
//	POST /api/test-token  check whether an access token works
//	GET  /health          liveness probe
//	GET  /metrics         prometheus metrics
//	GET  /                service banner
//
// Tokens arrive per request; the server keeps no state between requests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/drivedupe/drivedupe/internal/deleter"
	"github.com/drivedupe/drivedupe/internal/extract"
	"github.com/drivedupe/drivedupe/internal/pipeline"
	"github.com/drivedupe/drivedupe/internal/similarity"
	"github.com/drivedupe/drivedupe/internal/storage"
	"github.com/drivedupe/drivedupe/internal/types"
)

// ProviderFactory builds a storage provider from a request token.
type ProviderFactory func(token string) storage.Provider

// Server handles the HTTP API.
type Server struct {
	newProvider ProviderFactory
	model       *similarity.Model
	extractor   *extract.Extractor
	workers     int
	logger      *zap.Logger
	metrics     *metrics
	mux         *http.ServeMux
}

// New creates a Server. newProvider is called once per request with the
// request's token.
func New(newProvider ProviderFactory, model *similarity.Model, workers int, logger *zap.Logger) *Server {
	s := &Server{
		newProvider: newProvider,
		model:       model,
		extractor:   extract.New(logger),
		workers:     workers,
		logger:      logger,
		metrics:     newMetrics(),
		mux:         http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.HandleFunc("POST /api/approve", s.handleApprove)
	s.mux.HandleFunc("POST /api/test-token", s.handleTestToken)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	return s
}

// ServeHTTP dispatches through CORS and request logging middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cors(s.mux).ServeHTTP(w, r)
	s.logger.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Duration("duration", time.Since(start)))
}

// cors permits browser clients on any origin. The service holds no
// credentials of its own; tokens are supplied by the caller.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req types.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "access token is required")
		return
	}

	s.metrics.scansStarted.Inc()
	start := time.Now()

	orch := pipeline.New(s.newProvider(req.Token), s.model, s.extractor, s.workers, false, s.logger)
	report, err := orch.Run(r.Context(), req)
	if err != nil {
		s.writeScanError(w, err)
		return
	}

	s.metrics.scansCompleted.Inc()
	s.metrics.scanDuration.Observe(time.Since(start).Seconds())
	s.metrics.filesProcessed.Add(float64(report.FilesProcessed))
	s.metrics.filesFailed.Add(float64(report.FilesFailed))
	s.metrics.groupsFound.WithLabelValues(types.GroupExact).Add(float64(len(report.Exact)))
	s.metrics.groupsFound.WithLabelValues(types.GroupSupersetSubset).Add(float64(len(report.SupersetSubset)))
	s.metrics.groupsFound.WithLabelValues(types.GroupNear).Add(float64(len(report.Near)))

	writeJSON(w, http.StatusOK, report)
}

// writeScanError maps pipeline failures to HTTP statuses.
func (s *Server) writeScanError(w http.ResponseWriter, err error) {
	var validationErr *types.ValidationError
	var providerErr *storage.ProviderError

	switch {
	case errors.Is(err, storage.ErrAuthExpired):
		writeError(w, http.StatusUnauthorized, storage.ErrAuthExpired.Error())
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &providerErr):
		writeError(w, http.StatusBadGateway, providerErr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; nothing useful to write.
		s.logger.Info("scan cancelled", zap.Error(err))
	default:
		s.logger.Error("scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("scan failed: %v", err))
	}
}

type approveRequest struct {
	Token     string   `json:"token"`
	FileIDs   []string `json:"file_ids"`
	Permanent bool     `json:"permanent"`
}

type approveResponse struct {
	Status       string              `json:"status"`
	DeletedFiles []string            `json:"deleted_files"`
	Errors       []types.DeleteError `json:"errors"`
	Permanent    bool                `json:"permanent"`
	Message      string              `json:"message"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "access token is required")
		return
	}
	if len(req.FileIDs) == 0 {
		writeError(w, http.StatusBadRequest, "no files selected for deletion")
		return
	}

	res, err := deleter.New(s.newProvider(req.Token), s.logger).Run(r.Context(), req.FileIDs, req.Permanent)
	if err != nil {
		s.logger.Info("deletion cancelled", zap.Error(err))
		return
	}
	s.metrics.filesDeleted.Add(float64(len(res.Deleted)))

	status := "completed"
	if len(res.Errors) > 0 {
		status = "partial"
	}
	deleted := res.Deleted
	if deleted == nil {
		deleted = []string{}
	}
	delErrors := res.Errors
	if delErrors == nil {
		delErrors = []types.DeleteError{}
	}
	writeJSON(w, http.StatusOK, approveResponse{
		Status:       status,
		DeletedFiles: deleted,
		Errors:       delErrors,
		Permanent:    res.Permanent,
		Message:      res.Message(),
	})
}

type testTokenRequest struct {
	Token string `json:"token"`
}

// maxTokenCheckFiles caps the sample returned by the token check.
const maxTokenCheckFiles = 10

type fileSummary struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type testTokenResponse struct {
	Valid      bool          `json:"valid"`
	FilesFound int           `json:"files_found"`
	Files      []fileSummary `json:"files"`
}

func (s *Server) handleTestToken(w http.ResponseWriter, r *http.Request) {
	var req testTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "access token is required")
		return
	}

	// Listing the root non-recursively is the cheapest authenticated call.
	files, err := s.newProvider(req.Token).ListFiles(r.Context(), []string{"root"}, false)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}

	summaries := make([]fileSummary, 0, min(len(files), maxTokenCheckFiles))
	for _, f := range files[:min(len(files), maxTokenCheckFiles)] {
		summaries = append(summaries, fileSummary{Name: f.Name, Size: f.Size, MimeType: f.MimeType})
	}
	writeJSON(w, http.StatusOK, testTokenResponse{
		Valid:      true,
		FilesFound: len(files),
		Files:      summaries,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "drivedupe",
		"status":  "running",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
