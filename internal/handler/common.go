// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/middleware"
	"github.com/hitoshi/bukuma/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを
// カテゴリに応じたHTTPステータスコードに変換して書き込む。
func handleServiceError(w http.ResponseWriter, err error) {
	if _, ok := err.(*model.APIError); !ok {
		// APIError以外のエラーは詳細をログのみに記録する
		slog.Error("internal server error", slog.String("error", err.Error()))
	}
	middleware.WriteError(w, err)
}

// decodeJSONBody はリクエストボディをJSONとして解析する。
// 解析に失敗した場合はエラーレスポンスを書き込みfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: model.CategoryValidation,
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// parseIDParam はURLパラメータ{id}をUUIDとして解析する。
// 解析に失敗した場合はエラーレスポンスを書き込みfalseを返す。
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.WriteError(w, model.NewValidationError("id", "UUID形式で指定してください"))
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination はpage/sizeクエリパラメータを解析する。
// 省略時はpage=0、size=20。sizeは最大100に丸める。
func parsePagination(r *http.Request) (page, size int) {
	page = 0
	size = defaultPageSize

	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			page = v
		}
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			size = v
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// accountResponse はアカウント情報のAPIレスポンス。
type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// publicAccountResponse は第三者向けの公開プロフィールレスポンス。
// メールアドレスとロールは含めない。
type publicAccountResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:        a.ID.String(),
		Email:     a.Email,
		Name:      a.Name,
		Username:  a.Username,
		Bio:       a.Bio,
		AvatarURL: a.AvatarURL,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toPublicAccountResponse(a *model.Account) publicAccountResponse {
	return publicAccountResponse{
		ID:        a.ID.String(),
		Name:      a.Name,
		Username:  a.Username,
		Bio:       a.Bio,
		AvatarURL: a.AvatarURL,
		CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// bookmarkResponse はブックマーク情報のAPIレスポンス。
type bookmarkResponse struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"ownerId"`
	OwnerName      string   `json:"ownerName"`
	OwnerUsername  string   `json:"ownerUsername"`
	OwnerAvatarURL string   `json:"ownerAvatarUrl,omitempty"`
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	Description    string   `json:"description,omitempty"`
	Tags           []string `json:"tags"`
	Visibility     string   `json:"visibility"`
	SavedCount     int      `json:"savedCount"`
	SharedCount    int      `json:"sharedCount"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

// bookmarkPageResponse はページネーション付きブックマーク一覧のAPIレスポンス。
type bookmarkPageResponse struct {
	Items []bookmarkResponse `json:"items"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
	Total int64              `json:"total"`
}

func toBookmarkResponse(b *model.Bookmark) bookmarkResponse {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return bookmarkResponse{
		ID:             b.ID.String(),
		OwnerID:        b.OwnerID.String(),
		OwnerName:      b.OwnerName,
		OwnerUsername:  b.OwnerUsername,
		OwnerAvatarURL: b.OwnerAvatarURL,
		Title:          b.Title,
		URL:            b.URL,
		Description:    b.Description,
		Tags:           tags,
		Visibility:     string(b.Visibility),
		SavedCount:     b.SavedCount,
		SharedCount:    b.SharedCount,
		CreatedAt:      b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      b.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toBookmarkPageResponse(page *model.BookmarkPage) bookmarkPageResponse {
	items := make([]bookmarkResponse, len(page.Items))
	for i, b := range page.Items {
		items[i] = toBookmarkResponse(b)
	}
	return bookmarkPageResponse{
		Items: items,
		Page:  page.Page,
		Size:  page.Size,
		Total: page.Total,
	}
}
