package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"contentops-credits/internal/config"
	"contentops-credits/internal/infra/metrics"
	red "contentops-credits/internal/infra/redis"
	"contentops-credits/internal/usecase"
)

// Server wires the credit API, the billing webhook and the admin catalog
// routes onto one router.
type Server struct {
	balanceUC *usecase.BalanceUseCase
	deductUC  *usecase.DeductionUseCase
	syncUC    *usecase.SyncUseCase
	planUC    *usecase.PlanUseCase
	limiter   *red.RateLimiter

	cfg config.ServerConfig
	dev bool

	consumePerMinute int

	log *zerolog.Logger
}

func NewServer(
	balanceUC *usecase.BalanceUseCase,
	deductUC *usecase.DeductionUseCase,
	syncUC *usecase.SyncUseCase,
	planUC *usecase.PlanUseCase,
	limiter *red.RateLimiter,
	cfg config.ServerConfig,
	limits config.LimitsConfig,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		balanceUC:        balanceUC,
		deductUC:         deductUC,
		syncUC:           syncUC,
		planUC:           planUC,
		limiter:          limiter,
		cfg:              cfg,
		dev:              dev,
		consumePerMinute: limits.ConsumePerMinute,
		log:              &l,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(s.cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/credits", func(r chi.Router) {
		r.Use(UserAuth(s.cfg.JWTSecret, s.dev))
		r.Get("/", s.handleGetCredits)
		r.Get("/events", s.handleListEvents)
		r.With(s.rateLimit()).Post("/", s.handleConsumeCredit)
	})

	r.Route("/internal/subscription-events", func(r chi.Router) {
		r.Use(KeyAuth(s.cfg.WebhookSecret))
		r.Post("/", s.handleSubscriptionEvent)
	})

	r.Route("/api/v1/plans", func(r chi.Router) {
		r.Use(KeyAuth(s.cfg.AdminAPIKey))
		r.Get("/", s.handleListPlans)
		r.Post("/", s.handleCreatePlan)
		r.Put("/{id}", s.handleUpdatePlan)
		r.Delete("/{id}", s.handleDeletePlan)
	})

	return r
}

// rateLimit caps POST /api/credits per user. The limiter lives in Redis so
// the cap holds across server instances; on limiter failure requests pass
// (the ledger itself stays correct without it).
func (s *Server) rateLimit() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			userID := UserID(r.Context())
			ok, err := s.limiter.Allow(r.Context(), red.ConsumeKey(userID), s.consumePerMinute, time.Minute)
			if err != nil {
				s.log.Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.IncRateLimited()
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
