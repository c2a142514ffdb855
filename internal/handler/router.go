package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/bukuma/internal/metrics"
	"github.com/hitoshi/bukuma/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// メトリクス公開
	Gatherer prometheus.Gatherer

	// ヘルスチェック用DB
	DB *sql.DB

	// サービス
	AuthService     AuthServiceInterface
	UserService     UserServiceInterface
	BookmarkService BookmarkServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (Optional|Required)BearerAuth → RateLimit
//
// 公開読み取りルートは認証任意（トークンがあればクレームを注入）、
// それ以外のAPIルートは認証必須とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	var statusRecorder middleware.HTTPStatusRecorder
	if deps.Metrics != nil {
		statusRecorder = deps.Metrics
	}
	var verifyRecorder middleware.VerifyFailureRecorder
	if deps.Metrics != nil {
		verifyRecorder = deps.Metrics
	}

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, statusRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	bookmarkHandler := NewBookmarkHandler(deps.BookmarkService)

	// --- 運用エンドポイント ---

	r.Get("/health", healthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証不要のルート ---

	// サインイン
	r.Post("/auth/google", authHandler.SignInWithGoogle)

	// 公開読み取り（認証任意: トークンがあれば非公開リソースの可視性判定に使う）
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalBearerAuthMiddleware(deps.TokenVerifier, verifyRecorder))

		r.Get("/api/bookmarks", bookmarkHandler.ListPublic)
		r.Get("/api/bookmarks/users/{username}", bookmarkHandler.ListByUsername)
		r.Get("/api/bookmarks/{id}", bookmarkHandler.Get)
		r.Get("/api/users/{id}", userHandler.GetPublicProfile)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: BearerAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.TokenVerifier, verifyRecorder))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// ブックマーク管理
		r.Route("/api/bookmarks", func(r chi.Router) {
			r.Get("/me", bookmarkHandler.ListMine)
			r.Get("/saved", bookmarkHandler.ListSaved)

			// POST /api/bookmarks - 作成（書き込み専用レート制限を追加）
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.WriteOpMiddleware()).Post("/", bookmarkHandler.Create)
			} else {
				r.Post("/", bookmarkHandler.Create)
			}

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", bookmarkHandler.Update)
				r.Delete("/", bookmarkHandler.Delete)

				// 保存・共有トグル
				r.Post("/save", bookmarkHandler.RecordSave)
				r.Delete("/save", bookmarkHandler.RemoveSave)
				r.Post("/share", bookmarkHandler.RecordShare)
				r.Delete("/share", bookmarkHandler.RemoveShare)
			})
		})

		// プロフィール管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetMe)
			r.Put("/me", userHandler.UpdateMe)
		})
	})

	return r
}

// healthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		if db != nil {
			pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}

		writeJSON(w, code, map[string]string{"status": status})
	}
}
