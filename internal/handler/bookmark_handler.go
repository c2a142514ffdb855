package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/bookmark"
	"github.com/hitoshi/bukuma/internal/middleware"
	"github.com/hitoshi/bukuma/internal/model"
	"github.com/hitoshi/bukuma/internal/token"
)

// BookmarkServiceInterface はブックマークハンドラーが必要とするサービスインターフェース。
type BookmarkServiceInterface interface {
	ListPublic(ctx context.Context, tag string, page, size int) (*model.BookmarkPage, error)
	ListMine(ctx context.Context, claims *token.Claims, page, size int) (*model.BookmarkPage, error)
	ListSaved(ctx context.Context, claims *token.Claims, page, size int) (*model.BookmarkPage, error)
	ListByUsername(ctx context.Context, username string, page, size int) (*model.BookmarkPage, error)
	Get(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error)
	Create(ctx context.Context, claims *token.Claims, req bookmark.CreateRequest) (*model.Bookmark, error)
	Update(ctx context.Context, claims *token.Claims, id uuid.UUID, req bookmark.UpdateRequest) (*model.Bookmark, error)
	Delete(ctx context.Context, claims *token.Claims, id uuid.UUID) error
	RecordSave(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error)
	RemoveSave(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error)
	RecordShare(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error)
	RemoveShare(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error)
}

// BookmarkHandler はブックマーク管理のHTTPハンドラー。
type BookmarkHandler struct {
	service BookmarkServiceInterface
}

// NewBookmarkHandler はBookmarkHandlerを生成する。
func NewBookmarkHandler(service BookmarkServiceInterface) *BookmarkHandler {
	return &BookmarkHandler{
		service: service,
	}
}

// createBookmarkRequest はブックマーク作成リクエストのボディ。
type createBookmarkRequest struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Visibility  string   `json:"visibility"`
}

// updateBookmarkRequest はブックマーク部分更新リクエストのボディ。
// 省略されたフィールドは変更しない。tagsは空配列で全削除。
type updateBookmarkRequest struct {
	Title       *string  `json:"title"`
	URL         *string  `json:"url"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	Visibility  *string  `json:"visibility"`
}

// ListPublic は公開ブックマーク一覧を返す。
// GET /api/bookmarks?tag=go&page=0&size=20
func (h *BookmarkHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)
	tag := r.URL.Query().Get("tag")

	result, err := h.service.ListPublic(r.Context(), tag, page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkPageResponse(result))
}

// ListMine は自身の全ブックマーク一覧を返す。
// GET /api/bookmarks/me
func (h *BookmarkHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)

	result, err := h.service.ListMine(r.Context(), middleware.ClaimsFromContext(r.Context()), page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkPageResponse(result))
}

// ListSaved は自身が保存したブックマーク一覧を返す。
// GET /api/bookmarks/saved
func (h *BookmarkHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)

	result, err := h.service.ListSaved(r.Context(), middleware.ClaimsFromContext(r.Context()), page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkPageResponse(result))
}

// ListByUsername は指定ユーザー名のオーナーの公開ブックマーク一覧を返す。
// GET /api/bookmarks/users/{username}
func (h *BookmarkHandler) ListByUsername(w http.ResponseWriter, r *http.Request) {
	page, size := parsePagination(r)
	username := chi.URLParam(r, "username")

	result, err := h.service.ListByUsername(r.Context(), username, page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkPageResponse(result))
}

// Get はブックマーク詳細を返す。
// GET /api/bookmarks/{id}
func (h *BookmarkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.Get(r.Context(), middleware.ClaimsFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(result))
}

// Create はブックマークを作成する。
// POST /api/bookmarks
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookmarkRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.Create(r.Context(), middleware.ClaimsFromContext(r.Context()), bookmark.CreateRequest{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Tags:        req.Tags,
		Visibility:  req.Visibility,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookmarkResponse(result))
}

// Update はブックマークを部分更新する。
// PUT /api/bookmarks/{id}
func (h *BookmarkHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req updateBookmarkRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.Update(r.Context(), middleware.ClaimsFromContext(r.Context()), id, bookmark.UpdateRequest{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Tags:        req.Tags,
		Visibility:  req.Visibility,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(result))
}

// Delete はブックマークを削除する。
// DELETE /api/bookmarks/{id}
func (h *BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.ClaimsFromContext(r.Context()), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecordSave はブックマークの保存を記録する。冪等。
// POST /api/bookmarks/{id}/save
func (h *BookmarkHandler) RecordSave(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.RecordSave)
}

// RemoveSave はブックマークの保存を取り消す。冪等。
// DELETE /api/bookmarks/{id}/save
func (h *BookmarkHandler) RemoveSave(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.RemoveSave)
}

// RecordShare はブックマークの共有を記録する。冪等。
// POST /api/bookmarks/{id}/share
func (h *BookmarkHandler) RecordShare(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.RecordShare)
}

// RemoveShare はブックマークの共有を取り消す。冪等。
// DELETE /api/bookmarks/{id}/share
func (h *BookmarkHandler) RemoveShare(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.RemoveShare)
}

// toggle はトグル系エンドポイントの共通実装。更新後のブックマークを返す。
func (h *BookmarkHandler) toggle(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error),
) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	result, err := op(r.Context(), middleware.ClaimsFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookmarkResponse(result))
}
