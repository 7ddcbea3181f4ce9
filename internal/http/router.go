// Package http is the REST and websocket surface of the storefront.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/skinet/internal/cache"
)

const productsCachePattern = "api/products"

type RouterConfig struct {
	JWTSecret       string
	ExposeErrors    bool
	RequestTimeout  time.Duration
	ProductCacheTTL time.Duration
	PaymentLimiter  *RateLimiter
}

type NotificationServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, email string)
}

type Deps struct {
	Products ProductService
	Delivery DeliveryMethodLister
	Carts    CartService
	Payments PaymentService
	Webhooks WebhookHandler
	Orders   OrderService
	Hub      NotificationServer
	Cache    cache.ResponseCache
	// Ready reports dependency health for /health; nil means always ready.
	Ready  func() bool
	Logger *slog.Logger
}

func NewRouter(cfg RouterConfig, d Deps) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ProductCacheTTL <= 0 {
		cfg.ProductCacheTTL = 10 * time.Minute
	}
	auth := NewAuthenticator(cfg.JWTSecret)
	limiter := cfg.PaymentLimiter
	if limiter == nil {
		limiter = NewRateLimiter(2, 5)
	}

	products := NewProductHandler(d.Products, d.Logger)
	carts := NewCartHandler(d.Carts, d.Logger)
	payments := NewPaymentHandler(d.Payments, d.Webhooks, d.Delivery, d.Logger)
	orders := NewOrdersHandler(d.Orders, d.Logger)

	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(d.Logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(Recoverer(d.Logger, cfg.ExposeErrors))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil && !d.Ready() {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.Compress(5))

		r.Route("/products", func(r chi.Router) {
			cached := r.With(CacheResponse(d.Cache, cfg.ProductCacheTTL, d.Logger))
			cached.Get("/", products.List)
			cached.Get("/{id}", products.Get)
			cached.Get("/brands", products.Brands)
			cached.Get("/types", products.Types)

			admin := r.With(auth.Middleware, RequireRole(RoleAdmin), InvalidateCache(d.Cache, productsCachePattern, d.Logger))
			admin.Post("/", products.Create)
			admin.Put("/{id}", products.Update)
			admin.Delete("/{id}", products.Delete)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Post("/", carts.SetCart)
			r.Delete("/", carts.DeleteCart)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/delivery-methods", payments.DeliveryMethods)
			r.Post("/webhook", payments.Webhook)
			r.With(auth.Middleware, limiter.Middleware).Post("/{cartId}", payments.CreateOrUpdateIntent)
		})

		r.Get("/coupons/{code}", payments.Coupon)

		r.Route("/orders", func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Post("/", orders.CreateOrder)
			r.Get("/", orders.ListOrders)
			r.Get("/{id}", orders.GetOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Middleware, RequireRole(RoleAdmin))
			r.Get("/orders", orders.AdminListOrders)
			r.Get("/orders/{id}", orders.AdminGetOrder)
			r.Post("/orders/refund/{id}", orders.Refund)
		})
	})

	r.With(auth.Middleware).Get("/hub/notifications", func(w http.ResponseWriter, r *http.Request) {
		email, ok := emailFromContext(w, r)
		if !ok {
			return
		}
		d.Hub.ServeWS(w, r, email)
	})

	return otelhttp.NewHandler(r, "storefront")
}
