package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/lunchplan/internal/metrics"
	"github.com/hitoshi/lunchplan/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメイン
	StatusService StatusServiceInterface
	BoardResolver BoardResolver
	GroupService  GroupServiceInterface
	Calendar      CurrentWeeker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → CORS → SecurityHeaders → Recovery → Logging → Metrics
//	  → (/api/*) Session → CSRF → RateLimit(General) → [書き込みのみ] RateLimit(Write)
//
// /health と /metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRFConfig.CookieSecure))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))

	statusHandler := NewStatusHandler(deps.StatusService, deps.BoardResolver)
	groupHandler := NewGroupHandler(deps.GroupService)
	weekHandler := NewWeekHandler(deps.Calendar)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		write := deps.RateLimiter.WriteMiddleware()

		r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
		r.Get("/api/weeks/current", weekHandler.Current)

		// ランチ予定
		r.Route("/api/statuses", func(r chi.Router) {
			r.Get("/", statusHandler.ListStatuses)
			r.With(write).Post("/", statusHandler.UpsertStatus)
			r.With(write).Put("/", statusHandler.UpsertStatus)
			r.With(write).Delete("/", statusHandler.ClearStatus)
			r.With(write).Delete("/week", statusHandler.ClearWeek)
		})

		// ユーザー
		r.Get("/api/users/visible", statusHandler.VisibleUsers)

		// グループ
		r.Route("/api/groups", func(r chi.Router) {
			r.Get("/", groupHandler.ListGroups)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", groupHandler.GetGroup)
				r.With(write).Delete("/", groupHandler.DeleteGroup)
			})
		})
	})

	return r
}
