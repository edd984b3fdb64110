package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modacart/modacart-backend/api/controllers"
	authcontrollers "github.com/modacart/modacart-backend/api/controllers/auth"
	ordercontrollers "github.com/modacart/modacart-backend/api/controllers/orders"
	paymentcontrollers "github.com/modacart/modacart-backend/api/controllers/payments"
	"github.com/modacart/modacart-backend/api/middleware"
	"github.com/modacart/modacart-backend/internal/auth"
	"github.com/modacart/modacart-backend/internal/cart"
	internalorders "github.com/modacart/modacart-backend/internal/orders"
	internalpayments "github.com/modacart/modacart-backend/internal/payments"
	"github.com/modacart/modacart-backend/pkg/auth/session"
	"github.com/modacart/modacart-backend/pkg/config"
	"github.com/modacart/modacart-backend/pkg/enums"
	"github.com/modacart/modacart-backend/pkg/logger"
	"github.com/modacart/modacart-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database controllers.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	authService auth.Service,
	cartService cart.Service,
	ordersService internalorders.Service,
	paymentsService internalpayments.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, database, redisClient, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", authcontrollers.Login(authService, logg))
		r.With(middleware.Idempotency(redisClient, logg)).Post("/register", authcontrollers.Register(authService, logg))
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", authcontrollers.Logout(authService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/pending/add-item", ordercontrollers.AddItem(cartService, logg))
			r.Post("/", ordercontrollers.Checkout(ordersService, logg))
			r.Get("/me", ordercontrollers.ListMine(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Delete("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
		})

		r.Route("/v1/payments", func(r chi.Router) {
			r.Post("/{orderId}", paymentcontrollers.Create(paymentsService, logg))
			r.Post("/confirm/{paymentId}", paymentcontrollers.Confirm(paymentsService, logg))
			r.Post("/retry/{paymentId}", paymentcontrollers.Retry(paymentsService, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin.String(), logg))
			r.Post("/payments/refund/{paymentId}", paymentcontrollers.Refund(paymentsService, logg))
		})
	})

	return r
}
