// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/bukuma/internal/model"
	"github.com/hitoshi/bukuma/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに検証済みクレームを格納するためのキー。
var claimsContextKey = contextKey("claims")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// token.Verifierの部分集合として定義する。
type TokenVerifier interface {
	Verify(tokenStr string) (*token.Claims, error)
}

// VerifyFailureRecorder はトークン検証失敗のメトリクス記録のインターフェース。
type VerifyFailureRecorder interface {
	RecordTokenVerifyFailure()
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証する
// ミドルウェアを返す。検証済みクレームをリクエストコンテキストに注入する。
// ヘッダーがない、または検証に失敗したリクエストには401 Unauthorizedを返す。
func NewBearerAuthMiddleware(verifier TokenVerifier, recorder VerifyFailureRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				WriteError(w, model.NewNotAuthenticatedError())
				return
			}

			claims, err := verifier.Verify(tokenStr)
			if err != nil {
				if recorder != nil {
					recorder.RecordTokenVerifyFailure()
				}
				slog.Warn("session token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteError(w, err)
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalBearerAuthMiddleware は公開エンドポイント用のミドルウェアを返す。
// Authorizationヘッダーがなければ未認証のまま通過させ、
// ヘッダーがあれば検証し、不正なトークンには401を返す。
func NewOptionalBearerAuthMiddleware(verifier TokenVerifier, recorder VerifyFailureRecorder) func(next http.Handler) http.Handler {
	required := NewBearerAuthMiddleware(verifier, recorder)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
// 未認証の場合はnilを返す。
func ClaimsFromContext(ctx context.Context) *token.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	if !ok {
		return nil
	}
	return claims
}

// ContextWithClaims はコンテキストに検証済みクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
