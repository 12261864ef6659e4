package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/apicalculator/internal/console/handler"
	"github.com/xela07ax/apicalculator/internal/infra"
	"github.com/xela07ax/apicalculator/internal/infra/auth"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// APIServer HTTP интерфейс калькулятора.
type APIServer struct {
	router  *chi.Mux
	logger  *zap.Logger
	metrics *infra.Metrics
	limiter *rate.Limiter

	validator auth.TokenValidator

	authHandler       *handler.AuthHandler
	operationsHandler *handler.OperationsHandler
}

func NewAPIServer(
	cfg infra.AuthConfig,
	logger *zap.Logger,
	metrics *infra.Metrics,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	opsH *handler.OperationsHandler,
) *APIServer {
	s := &APIServer{
		router:            chi.NewRouter(),
		logger:            logger.Named("api"),
		metrics:           metrics,
		limiter:           rate.NewLimiter(rate.Limit(cfg.LoginRate), cfg.LoginBurst),
		validator:         validator,
		authHandler:       authH,
		operationsHandler: opsH,
	}

	s.routes()
	return s
}

func (s *APIServer) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(accessLog(s.logger, s.metrics))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/Authenticate", func(r chi.Router) {
		r.Use(loginThrottle(s.limiter, s.logger, s.metrics))
		s.authHandler.RegisterRoutes(r)
	})

	r.Route("/api/Operations", func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.validator, s.logger, s.metrics))
		s.operationsHandler.RegisterRoutes(r)
	})
}

func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
