// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// Runner performs one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (catalog.RunSummary, error)
}

// Reader lists stored products.
type Reader interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

// Options tunes the server.
type Options struct {
	// APIKey protects /v1 when set.
	APIKey  string
	Timeout time.Duration
}

// Server wires HTTP handlers to the pipeline and the product store.
type Server struct {
	router chi.Router
	runner Runner
	store  Reader
	logger *zap.Logger

	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    *runState
}

type runState struct {
	Summary catalog.RunSummary `json:"summary"`
	Error   string             `json:"error,omitempty"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, store Reader, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:    runner,
		store:     store,
		logger:    logger,
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.Timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Post("/runs", s.startRun)
		r.Get("/runs/latest", s.latestRun)
		r.Get("/products", s.listProducts)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close cancels a run started over HTTP and waits for it to return.
func (s *Server) Close() {
	s.mu.Lock()
	s.cancelRun()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.runCtx.Err() != nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) startRun(w http.ResponseWriter, _ *http.Request) {
	if !s.Trigger() {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Trigger starts a pipeline run in the background unless one is in progress
// or the server is closing. It reports whether a run was started.
func (s *Server) Trigger() bool {
	s.mu.Lock()
	if s.running || s.runCtx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		summary, err := s.runner.Run(s.runCtx)
		state := &runState{Summary: summary}
		if err != nil {
			state.Error = err.Error()
			s.logger.Error("triggered run failed", zap.Error(err))
		}
		s.mu.Lock()
		s.running = false
		s.last = state
		s.mu.Unlock()
	}()
	return true
}

func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running, last := s.running, s.last
	s.mu.Unlock()
	if last == nil {
		if running {
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "running"})
			return
		}
		writeError(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": running, "last": last})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, newProductView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "products": out})
}

// productView mirrors the document layout of the products collection.
type productView struct {
	ID            int64            `json:"_id"`
	URL           string           `json:"productUrl"`
	Name          string           `json:"name"`
	OriginalPrice string           `json:"originalPrice"`
	DiscountPrice string           `json:"discountedPrice"`
	Discount      int              `json:"discount"`
	Rating        *string          `json:"rating,omitempty"`
	ProductInfo   *string          `json:"productInfo,omitempty"`
	DetailParsed  bool             `json:"detailParsed"`
	Reviews       []catalog.Review `json:"reviews,omitempty"`
}

func newProductView(p catalog.Product) productView {
	v := productView{
		ID:            p.ID,
		URL:           p.URL,
		Name:          p.Name,
		OriginalPrice: p.OriginalPrice.StringFixed(2),
		DiscountPrice: p.DiscountPrice.StringFixed(2),
		Discount:      p.Discount,
		ProductInfo:   p.ProductInfo,
		DetailParsed:  p.DetailParsed,
	}
	if p.Rating.Valid {
		rating := p.Rating.Decimal.String()
		v.Rating = &rating
	}
	if p.ReviewsParsed {
		v.Reviews = p.Reviews
	}
	return v
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request completed",
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
