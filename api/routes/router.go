package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhanibekov/libris-backend/api/controllers"
	"github.com/zhanibekov/libris-backend/api/middleware"
	"github.com/zhanibekov/libris-backend/internal/auth"
	"github.com/zhanibekov/libris-backend/internal/authors"
	"github.com/zhanibekov/libris-backend/internal/books"
	"github.com/zhanibekov/libris-backend/internal/categories"
	"github.com/zhanibekov/libris-backend/internal/fees"
	"github.com/zhanibekov/libris-backend/internal/loans"
	"github.com/zhanibekov/libris-backend/internal/requests"
	"github.com/zhanibekov/libris-backend/internal/users"
	"github.com/zhanibekov/libris-backend/pkg/auth/session"
	"github.com/zhanibekov/libris-backend/pkg/config"
	"github.com/zhanibekov/libris-backend/pkg/db"
	"github.com/zhanibekov/libris-backend/pkg/logger"
	"github.com/zhanibekov/libris-backend/pkg/redis"
)

// Deps bundles everything the router needs so cmd/api stays a thin shell.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *redis.Client
	SessionChecker  session.AccessSessionChecker
	AuthService     auth.Service
	RegisterService auth.RegisterService
	UsersRepo       *users.Repository
	BooksService    books.Service
	AuthorsService  authors.Service
	CatsService     categories.Service
	LoansService    loans.Service
	FeesService     fees.Service
	RequestsService requests.Service
	Metrics         prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

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
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.With(
			middleware.AuthRateLimit(registerPolicy, deps.Redis, logg),
			middleware.Idempotency(deps.Redis, logg),
		).Post("/register", controllers.AuthRegister(deps.RegisterService, deps.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.AuthService, logg))
		r.With(middleware.Auth(cfg.JWT, deps.SessionChecker, logg)).Post("/logout", controllers.AuthLogout(deps.AuthService, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AdminAuthLogin(deps.AuthService, logg))
	})

	// Catalog reads are public so the web client can browse without a session.
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", controllers.BookList(deps.BooksService, logg))
			r.Get("/{bookId}", controllers.BookDetail(deps.BooksService, logg))
		})
		r.Route("/authors", func(r chi.Router) {
			r.Get("/", controllers.AuthorList(deps.AuthorsService, logg))
			r.Get("/{authorId}", controllers.AuthorDetail(deps.AuthorsService, logg))
		})
		r.Get("/categories", controllers.CategoryList(deps.CatsService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Get("/me", controllers.UserProfile(deps.UsersRepo, logg))
			r.Get("/loans", controllers.LoanListMine(deps.LoansService, logg))
			r.Get("/fees", controllers.FeeListMine(deps.FeesService, logg))
			r.Route("/book-requests", func(r chi.Router) {
				r.Post("/", controllers.BookRequestCreate(deps.RequestsService, logg))
				r.Get("/", controllers.BookRequestListMine(deps.RequestsService, logg))
				r.Delete("/{requestId}", controllers.BookRequestCancel(deps.RequestsService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/books", func(r chi.Router) {
			r.Post("/", controllers.BookCreate(deps.BooksService, logg))
			r.Put("/{bookId}", controllers.BookUpdate(deps.BooksService, logg))
			r.Delete("/{bookId}", controllers.BookDelete(deps.BooksService, logg))
		})
		r.Route("/authors", func(r chi.Router) {
			r.Post("/", controllers.AuthorCreate(deps.AuthorsService, logg))
			r.Put("/{authorId}", controllers.AuthorUpdate(deps.AuthorsService, logg))
			r.Delete("/{authorId}", controllers.AuthorDelete(deps.AuthorsService, logg))
		})
		r.Route("/categories", func(r chi.Router) {
			r.Post("/", controllers.CategoryCreate(deps.CatsService, logg))
			r.Put("/{categoryId}", controllers.CategoryUpdate(deps.CatsService, logg))
			r.Delete("/{categoryId}", controllers.CategoryDelete(deps.CatsService, logg))
		})
		r.Route("/loans", func(r chi.Router) {
			r.Post("/", controllers.LoanIssue(deps.LoansService, logg))
			r.Get("/", controllers.LoanList(deps.LoansService, logg))
			r.Get("/overdue", controllers.LoanListOverdue(deps.LoansService, logg))
			r.Get("/{loanId}", controllers.LoanDetail(deps.LoansService, logg))
			r.Post("/{loanId}/return", controllers.LoanReturn(deps.LoansService, logg))
		})
		r.Route("/fees", func(r chi.Router) {
			r.Post("/", controllers.FeeCreate(deps.FeesService, logg))
			r.Get("/", controllers.FeeList(deps.FeesService, logg))
			r.Get("/{feeId}", controllers.FeeDetail(deps.FeesService, logg))
			r.Post("/{feeId}/pay", controllers.FeePay(deps.FeesService, logg))
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.UserList(deps.UsersRepo, logg))
			r.Get("/{userId}", controllers.UserDetail(deps.UsersRepo, logg))
			r.Patch("/{userId}/active", controllers.UserSetActive(deps.UsersRepo, logg))
		})
		r.Route("/book-requests", func(r chi.Router) {
			r.Get("/", controllers.BookRequestList(deps.RequestsService, logg))
			r.Post("/{requestId}/approve", controllers.BookRequestApprove(deps.RequestsService, logg))
			r.Post("/{requestId}/reject", controllers.BookRequestReject(deps.RequestsService, logg))
			r.Delete("/{requestId}", controllers.BookRequestDelete(deps.RequestsService, logg))
		})
	})

	return r
}
