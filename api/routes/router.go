package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abarbet/shoply-backend/api/controllers"
	"github.com/abarbet/shoply-backend/api/middleware"
	authsvc "github.com/abarbet/shoply-backend/internal/auth"
	ordersvc "github.com/abarbet/shoply-backend/internal/orders"
	paymentsvc "github.com/abarbet/shoply-backend/internal/payments"
	productsvc "github.com/abarbet/shoply-backend/internal/products"
	"github.com/abarbet/shoply-backend/pkg/config"
	"github.com/abarbet/shoply-backend/pkg/enums"
	"github.com/abarbet/shoply-backend/pkg/logger"
	"github.com/abarbet/shoply-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry

	AuthService    authsvc.Service
	ProductService productsvc.Service
	OrderService   ordersvc.Service
	PaymentService paymentsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
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
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    pingerOrNil(deps.Redis),
		}))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).
			Post("/register", controllers.Register(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).
			Post("/login", controllers.Login(deps.AuthService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(deps.ProductService, logg))
		r.Get("/{productId}", controllers.GetProduct(deps.ProductService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(deps.OrderService, logg))
			r.Get("/", controllers.ListMyOrders(deps.OrderService, logg))
			r.Get("/{orderId}", controllers.GetOrder(deps.OrderService, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(deps.OrderService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.SubmitPayment(deps.PaymentService, logg))
			r.Get("/{paymentId}", controllers.GetPayment(deps.PaymentService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.CreateProduct(deps.ProductService, logg))
				r.Patch("/{productId}", controllers.UpdateProduct(deps.ProductService, logg))
				r.Delete("/{productId}", controllers.DeleteProduct(deps.ProductService, logg))
			})
			r.Patch("/orders/{orderId}/status", controllers.UpdateOrderStatus(deps.OrderService, logg))
		})
	})

	return r
}

// pingerOrNil avoids handing a typed nil pointer to the readiness probe.
func pingerOrNil(client *redis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}
