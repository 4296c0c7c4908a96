package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authcontrollers "github.com/sevakart/sevakart-backend/api/controllers/authctrl"
	bookingcontrollers "github.com/sevakart/sevakart-backend/api/controllers/bookings"
	cartcontrollers "github.com/sevakart/sevakart-backend/api/controllers/cart"
	"github.com/sevakart/sevakart-backend/api/controllers/health"
	ordercontrollers "github.com/sevakart/sevakart-backend/api/controllers/orders"
	referralcontrollers "github.com/sevakart/sevakart-backend/api/controllers/referralctrl"
	walletcontrollers "github.com/sevakart/sevakart-backend/api/controllers/wallet"
	"github.com/sevakart/sevakart-backend/api/middleware"
	"github.com/sevakart/sevakart-backend/internal/auth"
	"github.com/sevakart/sevakart-backend/internal/bookings"
	"github.com/sevakart/sevakart-backend/internal/cart"
	"github.com/sevakart/sevakart-backend/internal/orders"
	"github.com/sevakart/sevakart-backend/internal/referral"
	"github.com/sevakart/sevakart-backend/internal/wallet"
	"github.com/sevakart/sevakart-backend/pkg/config"
	"github.com/sevakart/sevakart-backend/pkg/logger"
	pkgredis "github.com/sevakart/sevakart-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *pkgredis.Client
	Pingers  map[string]health.Pinger
	Auth     auth.Service
	Wallet   wallet.Service
	Orders   orders.Service
	Bookings bookings.Service
	Cart     cart.Service
	Referral referral.Service
}

// NewRouter assembles the chi router with the full middleware stack.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", health.Live())
		r.Get("/ready", health.Ready(logg, d.Pingers))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).
			Post("/login", authcontrollers.Login(d.Auth, logg))
		r.With(
			middleware.AuthRateLimit(registerPolicy, d.Redis, logg),
			middleware.Idempotency(d.Redis, logg),
		).Post("/register", authcontrollers.Register(d.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", walletcontrollers.GetBalance(d.Wallet, logg))
			r.Get("/transactions", walletcontrollers.ListTransactions(d.Wallet, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.Post("/", ordercontrollers.Create(d.Orders, logg))
			r.Get("/{orderID}", ordercontrollers.Get(d.Orders, logg))
			r.Post("/{orderID}/cancel", ordercontrollers.Cancel(d.Orders, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", bookingcontrollers.List(d.Bookings, logg))
			r.Post("/", bookingcontrollers.Create(d.Bookings, logg))
			r.Get("/{bookingID}", bookingcontrollers.Get(d.Bookings, logg))
			r.Post("/{bookingID}/cancel", bookingcontrollers.Cancel(d.Bookings, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Get(d.Cart, logg))
			r.Post("/items", cartcontrollers.AddItem(d.Cart, logg))
			r.Patch("/items/{itemID}", cartcontrollers.UpdateItem(d.Cart, logg))
			r.Delete("/items/{itemID}", cartcontrollers.RemoveItem(d.Cart, logg))
			r.Delete("/", cartcontrollers.Clear(d.Cart, logg))
		})

		r.Route("/referrals", func(r chi.Router) {
			r.Post("/apply", referralcontrollers.Apply(d.Referral, logg))
			r.Get("/stats", referralcontrollers.Stats(d.Referral, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Route("/wallet", func(r chi.Router) {
				r.Post("/credit", walletcontrollers.Credit(d.Wallet, logg))
				r.Post("/debit", walletcontrollers.Debit(d.Wallet, logg))
			})
			r.Route("/orders", func(r chi.Router) {
				r.Post("/{orderID}/status", ordercontrollers.UpdateStatus(d.Orders, logg))
				r.Post("/{orderID}/payments", ordercontrollers.ApplyPayment(d.Orders, logg))
				r.Post("/{orderID}/payments/recalculate", ordercontrollers.RecalculatePayments(d.Orders, logg))
			})
			r.Route("/bookings", func(r chi.Router) {
				r.Post("/{bookingID}/status", bookingcontrollers.UpdateStatus(d.Bookings, logg))
				r.Post("/{bookingID}/payments", bookingcontrollers.ApplyPayment(d.Bookings, logg))
				r.Post("/{bookingID}/payments/recalculate", bookingcontrollers.RecalculatePayments(d.Bookings, logg))
			})
		})
	})

	return r
}
