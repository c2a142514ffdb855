package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/bukuma/internal/auth"
	"github.com/hitoshi/bukuma/internal/middleware"
	"github.com/hitoshi/bukuma/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// SignInWithGoogle はGoogleのIDトークンを検証し、アカウントを照合・作成して
	// セッショントークンを発行する。
	SignInWithGoogle(ctx context.Context, idToken, requestedUsername string) (*auth.AuthResult, error)
}

// AuthHandler はサインイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

// signInRequest はGoogleサインインリクエストのボディ。
type signInRequest struct {
	IDToken  string `json:"idToken"`
	Username string `json:"username"`
}

// signInResponse はサインイン成功時のレスポンス。
type signInResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"tokenType"`
	ExpiresIn int             `json:"expiresIn"`
	User      accountResponse `json:"user"`
}

// SignInWithGoogle はGoogleのIDトークンによるサインインを処理する。
// POST /auth/google
func (h *AuthHandler) SignInWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.IDToken) == "" {
		middleware.WriteError(w, model.NewValidationError("idToken", "必須項目です"))
		return
	}

	result, err := h.service.SignInWithGoogle(r.Context(), req.IDToken, req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signInResponse{
		Token:     result.Token,
		TokenType: result.TokenType,
		ExpiresIn: result.ExpiresIn,
		User:      toAccountResponse(result.Account),
	})
}
