package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"membership-platform/internal/usecase"
)

// RateLimiter is the slice of the redis limiter the server needs; nil
// disables rate limiting (tests, dev).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	userUC     usecase.UserUseCase
	orderUC    usecase.OrderUseCase
	checkoutUC usecase.CheckoutUseCase
	memberUC   usecase.MembershipUseCase
	levelUC    usecase.LevelUseCase
	webhookUC  usecase.WebhookUseCase

	auth           *AuthManager
	limiter        RateLimiter
	checkoutPerMin int
	log            *zerolog.Logger
	healthCheck    func(ctx context.Context) error
}

func NewServer(
	userUC usecase.UserUseCase,
	orderUC usecase.OrderUseCase,
	checkoutUC usecase.CheckoutUseCase,
	memberUC usecase.MembershipUseCase,
	levelUC usecase.LevelUseCase,
	webhookUC usecase.WebhookUseCase,
	auth *AuthManager,
	limiter RateLimiter,
	checkoutPerMin int,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	if checkoutPerMin <= 0 {
		checkoutPerMin = 10
	}
	return &Server{
		userUC:         userUC,
		orderUC:        orderUC,
		checkoutUC:     checkoutUC,
		memberUC:       memberUC,
		levelUC:        levelUC,
		webhookUC:      webhookUC,
		auth:           auth,
		limiter:        limiter,
		checkoutPerMin: checkoutPerMin,
		log:            &l,
	}
}

// SetHealthCheck installs the dependency probe /healthz runs.
func (s *Server) SetHealthCheck(fn func(ctx context.Context) error) { s.healthCheck = fn }

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated: the provider signs its own requests.
		r.Post("/webhooks/{provider}", s.handleWebhook)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/levels", s.handleLevelsList)

		// Session-scoped surface.
		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Route("/orders", func(r chi.Router) {
				r.With(s.requireAction(actionCheckout), s.rateLimit("checkout")).
					Post("/", s.handleOrderCreate)
				r.Get("/mine", s.handleOrdersMine)
				r.Get("/{publicID}", s.handleOrderGet)
				r.Post("/{publicID}/cancel", s.handleOrderCancel)
				r.Post("/{publicID}/refund", s.handleOrderRefund)
			})

			r.Route("/membership", func(r chi.Router) {
				r.Get("/", s.handleMembershipGet)
				r.With(s.requireAction(actionCheckout), s.rateLimit("checkout")).
					Post("/checkout", s.handleCheckout)
				r.Get("/verify-payment", s.handleVerifyPayment)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireAction(actionManageLevel))
				r.Post("/levels", s.handleLevelCreate)
				r.Put("/levels/{id}", s.handleLevelUpdate)
				r.Delete("/levels/{id}", s.handleLevelDelete)
			})
		})
	})

	return r
}

// rateLimit caps an authenticated action per user per minute.
func (s *Server) rateLimit(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := claimsFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid session")
				return
			}
			key := "rate_limit:" + claims.Subject + ":" + action
			allowed, err := s.limiter.Allow(r.Context(), key, s.checkoutPerMin, time.Minute)
			if err != nil {
				// Rate limiting is protective, not load-bearing; an
				// unavailable limiter must not take checkout down.
				s.log.Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.healthCheck(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
