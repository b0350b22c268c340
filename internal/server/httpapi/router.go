package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/service"
)

type Options struct {
	MaxRequestBytes int64
	// CORSOrigins defaults to every origin.
	CORSOrigins []string
	// ExposeDebugToken adds the plaintext login token to the register
	// response when the notifier failed.
	ExposeDebugToken bool
}

type Router struct {
	services *service.Services
	logger   *slog.Logger
	opts     Options
}

func NewRouter(services *service.Services, logger *slog.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := &Router{services: services, logger: logger, opts: opts}
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(r.requestLogger)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	mux.Get("/healthz", r.handleHealth)
	mux.Post("/register", r.handleRegister)
	mux.Post("/login", r.handleLogin)

	mux.Group(func(pr chi.Router) {
		pr.Use(r.authMiddleware)
		pr.Post("/chat", r.handleChat)
		pr.Get("/conversations", r.handleListConversations)
		pr.Get("/conversations/{id}", r.handleGetConversation)
		pr.Delete("/conversations/{id}", r.handleDeleteConversation)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		defer func() {
			r.logger.InfoContext(req.Context(), "http request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(req.Context()),
				"remote", req.RemoteAddr,
			)
		}()
		next.ServeHTTP(ww, req)
	})
}
