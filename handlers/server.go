package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"nf-licencas.app/cloud/internal/licensing"
	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/internal/metrics"
	"nf-licencas.app/cloud/internal/pagbank"
	"nf-licencas.app/cloud/internal/ratelimit"
	"nf-licencas.app/cloud/internal/version"
	"nf-licencas.app/cloud/models"
)

type PaymentReconciler interface {
	Reconcile(ctx context.Context, n pagbank.Notification) models.PaymentEvidence
}

type LicenseIssuer interface {
	Issue(ctx context.Context, evidence models.PaymentEvidence) (licensing.IssueResult, error)
}

type LicenseValidator interface {
	Validate(ctx context.Context, presented string) (licensing.ValidationResult, error)
}

type Options struct {
	AllowedOrigins []string
	// Limiter guards the validation endpoint. Nil disables rate limiting.
	Limiter ratelimit.RateLimit
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only safe behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

type Server struct {
	Router     chi.Router
	reconciler PaymentReconciler
	issuer     LicenseIssuer
	validator  LicenseValidator
}

func NewHttpServer(reconciler PaymentReconciler, issuer LicenseIssuer, validator LicenseValidator, opts Options) *Server {
	s := &Server{
		Router:     chi.NewRouter(),
		reconciler: reconciler,
		issuer:     issuer,
		validator:  validator,
	}

	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s.Router.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		s.Router.Use(middleware.RealIP)
	}
	s.Router.Use(requestLogger)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.Router.Get("/", s.Root)
	s.Router.Get("/health", s.Health)
	s.Router.Handle("/metrics", metrics.Handler())
	s.Router.Post("/pagbank/webhook", s.PagBankWebhook)

	s.Router.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(ratelimit.Middleware(opts.Limiter))
		}
		r.Post("/licencas/validar", s.ValidateLicense)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version.Version,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":   "ok",
		"mensagem": "Backend de licenças rodando",
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("HTTP request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
			"remote_addr": r.RemoteAddr,
		})
	})
}

// captureError reports to Sentry through the request hub when there is one.
func captureError(r *http.Request, err error) {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"detail": message})
}
