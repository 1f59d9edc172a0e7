// Package server exposes conversions over HTTP: POST /v1/convert runs a
// request, GET /v1/progress streams progress samples as server-sent events,
// and /health reports liveness.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-wavemp3/internal/convert"
	"github.com/example/go-wavemp3/internal/progress"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// ConvertService runs one conversion request to completion.
type ConvertService interface {
	Convert(ctx context.Context, req convert.Request) (convert.Outcome, error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		workers:        2,
		requestTimeout: 5 * time.Minute,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithWorkers sets the maximum number of concurrent conversions.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request conversion deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	svc  ConvertService
	hub  *progress.Hub
	opts options
	sem  chan struct{} // semaphore for worker pool
	log  *slog.Logger
}

// NewHandler returns an http.Handler serving /health, POST /v1/convert and
// GET /v1/progress. The hub is shared with the converter so progress
// subscriptions are independent of any single request.
func NewHandler(svc ConvertService, hub *progress.Hub, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		svc:  svc,
		hub:  hub,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/v1/convert", h.handleConvert)
	mux.HandleFunc("/v1/progress", h.handleProgress)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type convertRequest struct {
	Input         string `json:"input"`
	Output        string `json:"output"`
	Format        string `json:"format,omitempty"`
	Bitrate       *int   `json:"bitrate,omitempty"`
	Quality       *int   `json:"quality,omitempty"`
	LowpassHz     int    `json:"lowpass_hz,omitempty"`
	HighpassHz    int    `json:"highpass_hz,omitempty"`
	ForceMono     bool   `json:"force_mono,omitempty"`
	AllowDegraded bool   `json:"allow_degraded,omitempty"`
}

type convertResponse struct {
	Output         string `json:"output"`
	Bytes          int64  `json:"bytes"`
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

func (h *handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Input == "" || req.Output == "" {
		writeError(w, http.StatusBadRequest, "input and output fields are required")
		return
	}

	opts := convert.DefaultOptions()
	if req.Bitrate != nil {
		opts.Bitrate = *req.Bitrate
	}
	if req.Quality != nil {
		opts.Quality = *req.Quality
	}
	opts.LowpassHz = req.LowpassHz
	opts.HighpassHz = req.HighpassHz
	opts.ForceMono = req.ForceMono
	opts.AllowDegraded = req.AllowDegraded

	// Acquire a worker slot — honour context cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
			// slot acquired
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	outcome, err := h.svc.Convert(ctx, convert.Request{
		Input:   req.Input,
		Output:  req.Output,
		Format:  req.Format,
		Options: opts,
	})
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "conversion timed out",
				slog.String("input", req.Input),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, "conversion timed out")
			return
		}
		h.log.ErrorContext(r.Context(), "conversion failed",
			slog.String("input", req.Input),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, statusForError(err), err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "conversion complete",
		slog.String("input", req.Input),
		slog.String("output", outcome.Path),
		slog.Int64("duration_ms", durationMS),
		slog.Int64("mp3_bytes", outcome.BytesWritten),
	)

	writeJSON(w, http.StatusOK, convertResponse{
		Output:         outcome.Path,
		Bytes:          outcome.BytesWritten,
		Degraded:       outcome.Degraded,
		DegradedReason: outcome.DegradedReason,
	})
}

// handleProgress streams progress samples as SSE until the client leaves.
func (h *handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	samples, cancel := h.hub.Subscribe(16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case s, open := <-samples:
			if !open {
				return
			}
			payload, err := json.Marshal(s)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func statusForError(err error) int {
	kind, ok := convert.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case convert.KindValidation:
		return http.StatusBadRequest
	case convert.KindFormat:
		return http.StatusUnprocessableEntity
	case convert.KindFile:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
}

func New(addr string, h http.Handler) *Server {
	return &Server{
		addr:            addr,
		handler:         h,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}
