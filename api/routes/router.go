package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/orders"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	Carts      cart.Service
	Evaluator  coupons.Evaluator
	Coupons    coupons.Service
	Addresses  address.Service
	Assembler  *orders.Assembler
	Orders     orders.Service
	Reconciler *payments.Reconciler
}

func NewRouter(d Dependencies) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": d.DB,
			"redis":    d.Redis,
		}))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	idempotency := middleware.Idempotency(d.Idempotency, cfg.Checkout.IdempotencyKeysTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(d.Carts, logg))
			r.Post("/items", cartcontrollers.CartAddItem(d.Carts, logg))
			r.Patch("/items", cartcontrollers.CartSetQuantity(d.Carts, logg))
			r.Delete("/items", cartcontrollers.CartRemoveItem(d.Carts, logg))
			r.Post("/quote", cartcontrollers.CartQuote(d.Carts, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/validate", controllers.CouponValidate(d.Evaluator, logg))
			r.With(idempotency).Post("/use", controllers.CouponUse(d.Coupons, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(d.Addresses, logg))
			r.Post("/", controllers.AddressCreate(d.Addresses, logg))
			r.Get("/pincode/{postalCode}", controllers.AddressPincodeLookup(d.Addresses, logg))
			r.Put("/{addressId}", controllers.AddressUpdate(d.Addresses, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(d.Addresses, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(d.Addresses, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(idempotency).Post("/", ordercontrollers.Place(d.Assembler, logg))
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
		})

		r.Route("/payment", func(r chi.Router) {
			r.With(idempotency).Post("/verify", controllers.PaymentVerify(d.Reconciler, logg))
			r.With(idempotency).Post("/failure", controllers.PaymentFailure(d.Reconciler, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(d.Orders, logg))
			r.Patch("/{orderId}/status", ordercontrollers.AdminAdvanceStatus(d.Orders, logg))
		})
	})

	return r
}
