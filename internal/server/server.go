package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/wadake/internal/auth"
	"github.com/dukerupert/wadake/internal/backup"
	"github.com/dukerupert/wadake/internal/config"
	"github.com/dukerupert/wadake/internal/events"
	"github.com/dukerupert/wadake/internal/handler"
	"github.com/dukerupert/wadake/internal/middleware"
	"github.com/dukerupert/wadake/internal/model"
	"github.com/dukerupert/wadake/internal/store"
	ws "github.com/dukerupert/wadake/internal/websocket"
)

type Server struct {
	db          *sql.DB
	cfg         *config.Config
	hub         *ws.Hub
	issuer      *auth.Issuer
	groupStore  *store.GroupStore
	authH       *handler.AuthHandler
	incomeH     *handler.LedgerHandler[model.Income]
	expenseH    *handler.LedgerHandler[model.Expense]
	budgetH     *handler.BudgetHandler
	categoryH   *handler.CategoryHandler
	groupH      *handler.GroupHandler
	summaryH    *handler.SummaryHandler
	healthH     *handler.HealthHandler
	wsH         *ws.Handler
	rateLimiter *middleware.RateLimiter
	backupMgr   *backup.Manager
	logger      *slog.Logger
}

// New wires stores, handlers and the change feed. verifier and broker are
// optional; changes always reach websocket clients and, when broker is set,
// the broker too.
func New(db *sql.DB, cfg *config.Config, loc *time.Location, verifier auth.Verifier, broker events.Publisher, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	var publisher events.Publisher = hub
	if broker != nil {
		publisher = events.Multi{hub, broker}
	}

	userStore := store.NewUserStore(db)
	groupStore := store.NewGroupStore(db)
	categoryStore := store.NewCategoryStore(db)
	incomeStore := store.NewIncomeStore(db)
	expenseStore := store.NewExpenseStore(db)
	budgetStore := store.NewBudgetStore(db)
	summaryStore := store.NewSummaryStore(db)

	issuer := auth.NewIssuer(cfg.JWTSecret)

	backupMgr := backup.NewManager(backup.Config{
		Dir:        cfg.Backup.Dir,
		Passphrase: cfg.Backup.Passphrase,
		Retention:  cfg.Backup.Retention,
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.S3Endpoint,
			Bucket:    cfg.Backup.S3Bucket,
			Region:    cfg.Backup.S3Region,
			Prefix:    cfg.Backup.S3Prefix,
			AccessKey: cfg.Backup.S3AccessKey,
			SecretKey: cfg.Backup.S3SecretKey,
		},
	}, db, logger.With("component", "backup"))

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		issuer:      issuer,
		groupStore:  groupStore,
		authH:       handler.NewAuthHandler(userStore, issuer, verifier, cfg.IssuerKey, cfg.CookieSecure, logger.With("component", "auth")),
		incomeH:     handler.NewIncomeHandler(incomeStore, categoryStore, publisher, loc, logger.With("component", "income")),
		expenseH:    handler.NewExpenseHandler(expenseStore, categoryStore, publisher, loc, logger.With("component", "expense")),
		budgetH:     handler.NewBudgetHandler(budgetStore, publisher, loc, logger.With("component", "budget")),
		categoryH:   handler.NewCategoryHandler(categoryStore, logger.With("component", "category")),
		groupH:      handler.NewGroupHandler(groupStore, userStore, publisher, logger.With("component", "group")),
		summaryH:    handler.NewSummaryHandler(summaryStore, categoryStore, groupStore, loc, logger.With("component", "summary")),
		healthH:     handler.NewHealthHandler(db, logger.With("component", "health")),
		wsH:         ws.NewHandler(hub, groupStore, originHosts(cfg.AllowedOrigins), logger.With("component", "websocket")),
		rateLimiter: middleware.NewRateLimiter(),
		backupMgr:   backupMgr,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthH.Check)
	outerMux.HandleFunc("GET /api/health", s.healthH.Check)
	outerMux.HandleFunc("POST /api/auth/token", s.rateLimitedHandler(s.authH.Token))
	outerMux.Handle("POST /api/auth/logout", middleware.OptionalAuth(s.issuer)(http.HandlerFunc(s.authH.Logout)))

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.issuer, s.logger.With("component", "auth"))
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	return s.wrap(outerMux)
}

// wrap applies the request-wide middleware. RequestID runs first so the
// recoverer and request logger both see the id.
func (s *Server) wrap(h http.Handler) http.Handler {
	h = middleware.CORS(s.cfg.AllowedOrigins)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	h = middleware.Recoverer(s.logger.With("component", "http"))(h)
	h = middleware.RequestID(h)
	return h
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP("token"), 10, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("GET /api/auth/ping", s.authH.Ping)

	// Personal ledger
	mux.HandleFunc("GET /api/incomes", s.incomeH.List)
	mux.HandleFunc("POST /api/incomes", s.incomeH.Create)
	mux.HandleFunc("PUT /api/incomes/{id}", s.incomeH.Update)
	mux.HandleFunc("DELETE /api/incomes/{id}", s.incomeH.Delete)

	mux.HandleFunc("GET /api/expenses", s.expenseH.List)
	mux.HandleFunc("POST /api/expenses", s.expenseH.Create)
	mux.HandleFunc("PUT /api/expenses/{id}", s.expenseH.Update)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.expenseH.Delete)

	mux.HandleFunc("GET /api/budgets", s.budgetH.List)

	// Categories
	mux.HandleFunc("GET /api/categories", s.categoryH.List)
	mux.HandleFunc("GET /api/categories/income", s.categoryH.ListIncome)
	mux.HandleFunc("GET /api/categories/expense", s.categoryH.ListExpense)

	// Groups
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("GET /api/groups/user/{userId}", s.groupH.ListForUser)

	// GET /api/groups/user/{userId} overlaps every GET /api/groups/{groupId}/x
	// pattern, so group-scoped routes live on their own mux behind a prefix.
	groupMux := http.NewServeMux()
	s.registerGroupRoutes(groupMux)
	mux.Handle("/api/groups/", groupMux)

	// Summaries
	mux.HandleFunc("GET /api/summary/daily", s.summaryH.Daily)
	mux.HandleFunc("GET /api/summary/monthly", s.summaryH.Monthly)
	mux.HandleFunc("GET /api/summary/yearly", s.summaryH.Yearly)
	mux.HandleFunc("GET /api/summary/trend", s.summaryH.Trend)
	mux.HandleFunc("GET /api/summary/trend/chart.png", s.summaryH.TrendChart)

	member := s.member
	mux.Handle("POST /api/summary/groups/{groupId}/daily", member(s.summaryH.Daily))
	mux.Handle("POST /api/summary/groups/{groupId}/monthly", member(s.summaryH.Monthly))
	mux.Handle("POST /api/summary/groups/{groupId}/yearly", member(s.summaryH.Yearly))
	mux.Handle("POST /api/summary/groups/{groupId}/trend", member(s.summaryH.Trend))
	mux.Handle("GET /api/summary/groups/{groupId}/trend/chart.png", member(s.summaryH.TrendChart))

	// Change feed
	mux.Handle("GET /api/ws", s.wsH)
}

func (s *Server) registerGroupRoutes(mux *http.ServeMux) {
	member := s.member

	mux.Handle("GET /api/groups/{groupId}/incomes", member(s.incomeH.List))
	mux.Handle("POST /api/groups/{groupId}/incomes", member(s.incomeH.Create))
	mux.Handle("PUT /api/groups/{groupId}/incomes/{id}", member(s.incomeH.Update))
	mux.Handle("DELETE /api/groups/{groupId}/incomes/{id}", member(s.incomeH.Delete))

	mux.Handle("GET /api/groups/{groupId}/expenses", member(s.expenseH.List))
	mux.Handle("POST /api/groups/{groupId}/expenses", member(s.expenseH.Create))
	mux.Handle("PUT /api/groups/{groupId}/expenses/{id}", member(s.expenseH.Update))
	mux.Handle("DELETE /api/groups/{groupId}/expenses/{id}", member(s.expenseH.Delete))

	mux.Handle("GET /api/groups/{groupId}/budgets", member(s.budgetH.List))
	mux.Handle("POST /api/groups/{groupId}/budgets", member(s.budgetH.Create))
	mux.Handle("PUT /api/groups/{groupId}/budgets/{id}", member(s.budgetH.Update))
	mux.Handle("DELETE /api/groups/{groupId}/budgets/{id}", member(s.budgetH.Delete))

	var invite http.Handler = http.HandlerFunc(s.groupH.Invite)
	if s.cfg.InviteRequiresAdmin {
		invite = middleware.RequireAdmin(invite)
	}
	mux.Handle("POST /api/groups/{groupId}/invite", s.requireMember(invite))
	mux.Handle("GET /api/groups/{groupId}/members", member(s.groupH.Members))
}

// member runs h only for members of the {groupId} path value.
func (s *Server) member(h http.HandlerFunc) http.Handler {
	return s.requireMember(h)
}

func (s *Server) requireMember(h http.Handler) http.Handler {
	return middleware.RequireMember(s.groupStore, s.logger.With("component", "membership"))(h)
}

// originHosts turns configured origins into the host patterns the websocket
// accept check expects.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
