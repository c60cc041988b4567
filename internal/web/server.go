package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/vbonduro/shelfinv/internal/domain"
	"github.com/vbonduro/shelfinv/internal/library"
	"github.com/vbonduro/shelfinv/internal/metrics"
	"github.com/vbonduro/shelfinv/internal/resource"
	"github.com/vbonduro/shelfinv/internal/session"
)

const defaultViewCacheSize = 32

type Options struct {
	AllowedOrigins []string
	// ViewCacheSize bounds how many store views stay loaded.
	ViewCacheSize int
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Server struct {
	loader  *library.Loader
	client  *resource.Client
	session *session.Session
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	views *lru.Cache[domain.ID, *storeState]

	router  chi.Router
	handler http.Handler
}

func NewServer(
	loader *library.Loader,
	client *resource.Client,
	sess *session.Session,
	m *metrics.Metrics,
	opts Options,
	logger *slog.Logger,
) (*Server, error) {
	size := opts.ViewCacheSize
	if size <= 0 {
		size = defaultViewCacheSize
	}
	views, err := lru.NewWithEvict(size, func(storeID domain.ID, _ *storeState) {
		logger.Debug("store view evicted", "store_id", storeID)
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		loader:  loader,
		client:  client,
		session: sess,
		metrics: m,
		logger:  logger,
		views:   views,
		router:  chi.NewRouter(),
	}
	s.registerRoutes(opts.Gatherer)

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	s.handler = c.Handler(s.router)
	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler { return requestLogger(s.logger, next) })
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Route("/api", func(r chi.Router) {
		r.Get("/books", s.handleListBooks)

		r.Route("/stores/{storeID}", func(r chi.Router) {
			r.Get("/inventory", s.handleStoreInventory)
			r.Post("/inventory", s.handleAddInventory)
			r.Get("/available-books", s.handleAvailableBooks)
			r.Post("/inventory/{id}/edit", s.handleEditInventory)
			r.Post("/inventory/{id}/cancel", s.handleCancelEdit)
			r.Patch("/inventory/{id}", s.handleSaveInventory)
			r.Delete("/inventory/{id}", s.handleDeleteInventory)
		})

		r.Get("/session", s.handleGetSession)
		r.Post("/session", s.handleSignIn)
		r.Delete("/session", s.handleSignOut)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}
