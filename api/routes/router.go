package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/retailhive/retailhive-backend/api/controllers"
	"github.com/retailhive/retailhive-backend/api/middleware"
	"github.com/retailhive/retailhive-backend/internal/auth"
	"github.com/retailhive/retailhive-backend/internal/cart"
	"github.com/retailhive/retailhive-backend/internal/categories"
	"github.com/retailhive/retailhive-backend/internal/checkout"
	"github.com/retailhive/retailhive-backend/internal/orders"
	product "github.com/retailhive/retailhive-backend/internal/products"
	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/db"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/metrics"
)

// SessionManager is the session surface the HTTP layer needs.
type SessionManager interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// RateLimitStore backs the login/register throttles.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// Dependencies carries everything cmd/api builds for the router.
type Dependencies struct {
	DB       db.Pinger
	Redis    RateLimitStore
	Sessions SessionManager
	Auth     auth.Service
	Register auth.RegisterService
	Profile  auth.ProfileService
	Products product.Service
	Retailer product.RetailerService
	Admin    product.AdminService
	Category categories.Service
	Cart     cart.Service
	Checkout checkout.Service
	Orders   orders.Service
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimiddleware.StripSlashes,
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.RateLimitPolicy{
		Name:        "login",
		Window:      cfg.AuthRateLimit.LoginWindow,
		PerIP:       cfg.AuthRateLimit.LoginIPLimit,
		PerIdentity: cfg.AuthRateLimit.LoginIdentityLimit,
	}
	registerPolicy := middleware.RateLimitPolicy{
		Name:        "register",
		Window:      cfg.AuthRateLimit.RegisterWindow,
		PerIP:       cfg.AuthRateLimit.RegisterIPLimit,
		PerIdentity: cfg.AuthRateLimit.RegisterIdentityLimit,
	}

	requireAuth := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/users", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.UserRegister(deps.Register, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.UserLogin(deps.Auth, logg))
		r.Post("/token/refresh", controllers.UserTokenRefresh(deps.Sessions, cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", controllers.UserLogout(deps.Sessions, logg))
			r.Get("/profile", controllers.UserProfile(deps.Profile, logg))
			r.Put("/profile/update", controllers.UserProfileUpdate(deps.Profile, logg))
		})
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/cart", controllers.CartView(deps.Cart, logg))
		r.Post("/cart/add", controllers.CartAddItem(deps.Cart, logg))
		r.Delete("/cart/remove/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))

		r.Get("/orders", controllers.OrderList(deps.Orders, logg))
		r.Post("/orders/create_order", controllers.OrderCreate(deps.Checkout, logg))
		r.Get("/orders/{orderId}", controllers.OrderDetail(deps.Orders, logg))
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(optionalAuth)
				r.Get("/", controllers.ProductList(deps.Products, logg))
				r.Get("/search", controllers.ProductSearch(deps.Products, logg))
				r.Get("/{productId}", controllers.ProductDetail(deps.Products, logg))
			})
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", controllers.ProductCreate(deps.Products, logg))
				r.Put("/{productId}", controllers.ProductReplace(deps.Products, logg))
				r.Patch("/{productId}", controllers.ProductPatch(deps.Products, logg))
				r.Delete("/{productId}", controllers.ProductDelete(deps.Products, logg))
				r.Post("/{productId}/add_review", controllers.ProductAddReview(deps.Products, logg))
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(optionalAuth)
				r.Get("/", controllers.CategoryList(deps.Category, logg))
				r.Get("/{categoryId}", controllers.CategoryDetail(deps.Category, logg))
			})
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, middleware.RequireRoles(logg, enums.RoleAdmin))
				r.Post("/", controllers.CategoryCreate(deps.Category, logg))
				r.Put("/{categoryId}", controllers.CategoryUpdate(deps.Category, logg))
				r.Delete("/{categoryId}", controllers.CategoryDelete(deps.Category, logg))
			})
		})

		r.Route("/retailer/products", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireRoles(logg, enums.RoleRetailer))
			r.Get("/", controllers.RetailerProductList(deps.Retailer, logg))
			r.Post("/", controllers.RetailerProductCreate(deps.Retailer, logg))
			r.Get("/pending_approval", controllers.RetailerPendingProducts(deps.Retailer, logg))
			r.Get("/approved_products", controllers.RetailerApprovedProducts(deps.Retailer, logg))
			r.Get("/sales_summary", controllers.RetailerSalesSummary(deps.Retailer, logg))
			r.Get("/{productId}", controllers.RetailerProductDetail(deps.Retailer, logg))
			r.Put("/{productId}", controllers.RetailerProductUpdate(deps.Retailer, false, logg))
			r.Patch("/{productId}", controllers.RetailerProductUpdate(deps.Retailer, true, logg))
			r.Delete("/{productId}", controllers.RetailerProductDelete(deps.Retailer, logg))
			r.Patch("/{productId}/update_stock", controllers.RetailerUpdateStock(deps.Retailer, logg))
		})

		r.Route("/admin/products", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireRoles(logg, enums.RoleAdmin))
			r.Get("/", controllers.AdminProductList(deps.Admin, logg))
			r.Get("/pending_approval", controllers.AdminPendingProducts(deps.Admin, logg))
			r.Get("/dashboard_stats", controllers.AdminDashboardStats(deps.Admin, logg))
			r.Get("/retailer_products", controllers.AdminRetailerProducts(deps.Admin, logg))
			r.Post("/bulk_approve", controllers.AdminBulkApprove(deps.Admin, logg))
			r.Post("/bulk_reject", controllers.AdminBulkReject(deps.Admin, logg))
			r.Post("/{productId}/approve_product", controllers.AdminApproveProduct(deps.Admin, logg))
			r.Post("/{productId}/reject_product", controllers.AdminRejectProduct(deps.Admin, logg))
		})
	})

	return r
}
