package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/middleware"
	"github.com/hitoshi/bukuma/internal/model"
	"github.com/hitoshi/bukuma/internal/token"
	"github.com/hitoshi/bukuma/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetOrCreate は自身のプロフィールを返す。未作成の場合はクレームから補完する。
	GetOrCreate(ctx context.Context, claims *token.Claims) (*model.Account, error)
	// Update は自身のプロフィールを部分更新する。
	Update(ctx context.Context, claims *token.Claims, req user.UpdateRequest) (*model.Account, error)
	// GetPublic は第三者向けの公開プロフィールを返す。
	GetPublic(ctx context.Context, id uuid.UUID) (*model.Account, error)
}

// UserHandler はプロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateProfileRequest struct {
	Name      *string `json:"name"`
	Username  *string `json:"username"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl"`
}

// GetMe は自身のプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		middleware.WriteError(w, model.NewNotAuthenticatedError())
		return
	}

	account, err := h.service.GetOrCreate(r.Context(), claims)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// UpdateMe は自身のプロフィールを部分更新する。
// PUT /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		middleware.WriteError(w, model.NewNotAuthenticatedError())
		return
	}

	var req updateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	account, err := h.service.Update(r.Context(), claims, user.UpdateRequest{
		Name:      req.Name,
		Username:  req.Username,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// GetPublicProfile は指定IDの公開プロフィールを返す。
// GET /api/users/{id}
func (h *UserHandler) GetPublicProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetPublic(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPublicAccountResponse(account))
}
