// Package web provides the HTTP server and handlers for dataset conversion
// and remote SAS file browsing.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sasbridge/internal/auth"
	"github.com/JonMunkholm/sasbridge/internal/config"
	"github.com/JonMunkholm/sasbridge/internal/convert"
	"github.com/JonMunkholm/sasbridge/internal/encode"
	"github.com/JonMunkholm/sasbridge/internal/favorites"
	"github.com/JonMunkholm/sasbridge/internal/transfer"
	mw "github.com/JonMunkholm/sasbridge/internal/web/middleware"
)

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Converter *convert.Service
	Transfer  *transfer.Client
	Favorites favorites.Store
	Tokens    *auth.Issuer
}

// Server is the HTTP server for the conversion and transfer API.
type Server struct {
	cfg       *config.Config
	converter *convert.Service
	transfer  *transfer.Client
	favorites favorites.Store
	tokens    *auth.Issuer
	router    *chi.Mux
	server    *http.Server
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		converter: deps.Converter,
		transfer:  deps.Transfer,
		favorites: deps.Favorites,
		tokens:    deps.Tokens,
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders)
	s.router.Use(cors(s.cfg.Security.AllowedOrigins))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Browser component routes
	s.router.Route("/sftp", func(r chi.Router) {
		r.With(mw.RequireToken(s.tokens)).Post("/list", s.handleSFTPList)
		r.Post("/download", s.handleSFTPDownload)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/convert", func(r chi.Router) {
			convertLimit := func(next http.Handler) http.Handler { return next }
			if s.cfg.Rate.Enabled {
				convertLimit = newRateLimiter(s.cfg.Rate.ConvertLimit, time.Minute).middleware
			}
			r.With(convertLimit).Post("/parquet", s.handleConvert(encode.FormatParquet))
			r.With(convertLimit).Post("/pdsas", s.handleConvert(encode.FormatDelimited))
			r.Get("/history", s.handleHistory)
			r.Get("/queue", s.handleQueueStatus)
		})

		r.Route("/sftp", func(r chi.Router) {
			r.Post("/test", s.handleSFTPTest)
			r.Post("/connect", s.handleSFTPTest)
			r.With(mw.RequireToken(s.tokens)).Post("/list", s.handleSFTPList)
			r.Post("/download", s.handleSFTPDownload)

			r.Get("/favorites", s.handleListFavorites)
			r.Post("/favorites", s.handleCreateFavorite)
			r.Put("/favorites/{name}", s.handleUpdateFavorite)
			r.Delete("/favorites/{name}", s.handleDeleteFavorite)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// The API serves JSON and file downloads only
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests and tags responses for allowed origins.
// A "*" entry allows any origin.
func cors(allowed []string) func(http.Handler) http.Handler {
	anyOrigin := false
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			anyOrigin = true
		}
		set[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || (!anyOrigin && !set[origin]) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Conversion-Id, X-Row-Count, X-Column-Count")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
