package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/bookmark"
	"github.com/hitoshi/bukuma/internal/model"
	"github.com/hitoshi/bukuma/internal/token"
)

// fakeBookmarkService は固定の結果またはエラーを返すBookmarkServiceInterface実装。
type fakeBookmarkService struct {
	bookmark *model.Bookmark
	page     *model.BookmarkPage
	err      error

	gotTag      string
	gotUsername string
	gotPage     int
	gotSize     int
	gotCreate   *bookmark.CreateRequest
	gotUpdate   *bookmark.UpdateRequest
	gotClaims   *token.Claims
}

func (f *fakeBookmarkService) ListPublic(ctx context.Context, tag string, page, size int) (*model.BookmarkPage, error) {
	f.gotTag, f.gotPage, f.gotSize = tag, page, size
	return f.page, f.err
}

func (f *fakeBookmarkService) ListMine(ctx context.Context, claims *token.Claims, page, size int) (*model.BookmarkPage, error) {
	f.gotClaims, f.gotPage, f.gotSize = claims, page, size
	return f.page, f.err
}

func (f *fakeBookmarkService) ListSaved(ctx context.Context, claims *token.Claims, page, size int) (*model.BookmarkPage, error) {
	f.gotClaims, f.gotPage, f.gotSize = claims, page, size
	return f.page, f.err
}

func (f *fakeBookmarkService) ListByUsername(ctx context.Context, username string, page, size int) (*model.BookmarkPage, error) {
	f.gotUsername, f.gotPage, f.gotSize = username, page, size
	return f.page, f.err
}

func (f *fakeBookmarkService) Get(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	f.gotClaims = claims
	return f.bookmark, f.err
}

func (f *fakeBookmarkService) Create(ctx context.Context, claims *token.Claims, req bookmark.CreateRequest) (*model.Bookmark, error) {
	f.gotClaims, f.gotCreate = claims, &req
	return f.bookmark, f.err
}

func (f *fakeBookmarkService) Update(ctx context.Context, claims *token.Claims, id uuid.UUID, req bookmark.UpdateRequest) (*model.Bookmark, error) {
	f.gotClaims, f.gotUpdate = claims, &req
	return f.bookmark, f.err
}

func (f *fakeBookmarkService) Delete(ctx context.Context, claims *token.Claims, id uuid.UUID) error {
	f.gotClaims = claims
	return f.err
}

func (f *fakeBookmarkService) RecordSave(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	f.gotClaims = claims
	return f.bookmark, f.err
}

func (f *fakeBookmarkService) RemoveSave(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	f.gotClaims = claims
	return f.bookmark, f.err
}

func (f *fakeBookmarkService) RecordShare(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	f.gotClaims = claims
	return f.bookmark, f.err
}

func (f *fakeBookmarkService) RemoveShare(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	f.gotClaims = claims
	return f.bookmark, f.err
}

func sampleBookmark() *model.Bookmark {
	return &model.Bookmark{
		ID:            uuid.New(),
		OwnerID:       uuid.New(),
		OwnerName:     "Ann Example",
		OwnerUsername: "ann",
		Title:         "Go concurrency patterns",
		URL:           "https://example.com/go",
		Tags:          []string{"go"},
		Visibility:    model.VisibilityPublic,
		SavedCount:    3,
		SharedCount:   1,
		CreatedAt:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func samplePage(items ...*model.Bookmark) *model.BookmarkPage {
	return &model.BookmarkPage{Items: items, Page: 0, Size: 20, Total: int64(len(items))}
}

func newBookmarkRouter(svc BookmarkServiceInterface) http.Handler {
	h := NewBookmarkHandler(svc)
	r := chi.NewRouter()
	r.Get("/api/bookmarks", h.ListPublic)
	r.Get("/api/bookmarks/me", h.ListMine)
	r.Get("/api/bookmarks/saved", h.ListSaved)
	r.Get("/api/bookmarks/users/{username}", h.ListByUsername)
	r.Post("/api/bookmarks", h.Create)
	r.Route("/api/bookmarks/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/save", h.RecordSave)
		r.Delete("/save", h.RemoveSave)
		r.Post("/share", h.RecordShare)
		r.Delete("/share", h.RemoveShare)
	})
	return r
}

// TestListPublic_DefaultPagination は省略時のページングが0/20になることを検証する。
func TestListPublic_DefaultPagination(t *testing.T) {
	svc := &fakeBookmarkService{page: samplePage(sampleBookmark())}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if svc.gotPage != 0 || svc.gotSize != 20 {
		t.Errorf("pagination = (%d, %d), want (0, 20)", svc.gotPage, svc.gotSize)
	}

	var got bookmarkPageResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(got.Items) != 1 || got.Total != 1 {
		t.Errorf("items = %d, total = %d", len(got.Items), got.Total)
	}
}

// TestListPublic_QueryParameters はtag/page/sizeクエリが伝播することを検証する。
func TestListPublic_QueryParameters(t *testing.T) {
	svc := &fakeBookmarkService{page: samplePage()}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks?tag=go&page=2&size=50", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if svc.gotTag != "go" || svc.gotPage != 2 || svc.gotSize != 50 {
		t.Errorf("got (%q, %d, %d), want (go, 2, 50)", svc.gotTag, svc.gotPage, svc.gotSize)
	}
}

// TestListPublic_SizeCapped はsizeが上限100に丸められることを検証する。
func TestListPublic_SizeCapped(t *testing.T) {
	svc := &fakeBookmarkService{page: samplePage()}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks?size=1000", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if svc.gotSize != 100 {
		t.Errorf("size = %d, want 100", svc.gotSize)
	}
}

// TestListByUsername_PassesUsername はユーザー名パラメータが伝播することを検証する。
func TestListByUsername_PassesUsername(t *testing.T) {
	svc := &fakeBookmarkService{page: samplePage()}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks/users/ann", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if svc.gotUsername != "ann" {
		t.Errorf("username = %q, want ann", svc.gotUsername)
	}
}

// TestGet_ReturnsBookmark はブックマーク詳細のレスポンス形式を検証する。
func TestGet_ReturnsBookmark(t *testing.T) {
	b := sampleBookmark()
	svc := &fakeBookmarkService{bookmark: b}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks/"+b.ID.String(), nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got bookmarkResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got.ID != b.ID.String() {
		t.Errorf("id = %q, want %q", got.ID, b.ID.String())
	}
	if got.SavedCount != 3 || got.SharedCount != 1 {
		t.Errorf("counts = %d/%d, want 3/1", got.SavedCount, got.SharedCount)
	}
	if got.Visibility != "PUBLIC" {
		t.Errorf("visibility = %q, want PUBLIC", got.Visibility)
	}
}

// TestGet_InvalidID はUUIDでないIDで400が返ることを検証する。
func TestGet_InvalidID(t *testing.T) {
	svc := &fakeBookmarkService{bookmark: sampleBookmark()}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks/not-a-uuid", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestGet_Forbidden は非公開リソースへのアクセス拒否で403が返ることを検証する。
func TestGet_Forbidden(t *testing.T) {
	svc := &fakeBookmarkService{err: model.NewNotAllowedError()}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestGet_NotFound は存在しないブックマークで404が返ることを検証する。
func TestGet_NotFound(t *testing.T) {
	id := uuid.New()
	svc := &fakeBookmarkService{err: model.NewBookmarkNotFoundError(id.String())}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks/"+id.String(), nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// TestCreate_Returns201 は作成成功で201とリクエスト内容の伝播を検証する。
func TestCreate_Returns201(t *testing.T) {
	svc := &fakeBookmarkService{bookmark: sampleBookmark()}
	r := newBookmarkRouter(svc)

	body := `{"title":"Go patterns","url":"https://example.com/go","tags":["go","patterns"],"visibility":"PRIVATE"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", strings.NewReader(body))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
	if svc.gotCreate == nil {
		t.Fatal("Create was not called")
	}
	if svc.gotCreate.Title != "Go patterns" || svc.gotCreate.URL != "https://example.com/go" {
		t.Errorf("create request = %+v", svc.gotCreate)
	}
	if svc.gotCreate.Visibility != "PRIVATE" || len(svc.gotCreate.Tags) != 2 {
		t.Errorf("create request = %+v", svc.gotCreate)
	}
}

// TestCreate_ValidationError は検証エラーで400が返ることを検証する。
func TestCreate_ValidationError(t *testing.T) {
	svc := &fakeBookmarkService{err: model.NewInvalidURLError()}
	r := newBookmarkRouter(svc)

	body := `{"title":"t","url":"not a url"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", strings.NewReader(body))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestUpdate_PassesPartialFields は部分更新で指定フィールドのみ伝播することを検証する。
func TestUpdate_PassesPartialFields(t *testing.T) {
	b := sampleBookmark()
	svc := &fakeBookmarkService{bookmark: b}
	r := newBookmarkRouter(svc)

	body := `{"visibility":"PRIVATE"}`
	req := httptest.NewRequest(http.MethodPut, "/api/bookmarks/"+b.ID.String(), strings.NewReader(body))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if svc.gotUpdate == nil {
		t.Fatal("Update was not called")
	}
	if svc.gotUpdate.Visibility == nil || *svc.gotUpdate.Visibility != "PRIVATE" {
		t.Errorf("visibility = %v, want PRIVATE", svc.gotUpdate.Visibility)
	}
	if svc.gotUpdate.Title != nil || svc.gotUpdate.URL != nil || svc.gotUpdate.Tags != nil {
		t.Errorf("omitted fields should be nil: %+v", svc.gotUpdate)
	}
}

// TestUpdate_EmptyTagsArrayIsNotNil は空配列のtagsがnilと区別されて伝播することを検証する。
func TestUpdate_EmptyTagsArrayIsNotNil(t *testing.T) {
	b := sampleBookmark()
	svc := &fakeBookmarkService{bookmark: b}
	r := newBookmarkRouter(svc)

	body := `{"tags":[]}`
	req := httptest.NewRequest(http.MethodPut, "/api/bookmarks/"+b.ID.String(), strings.NewReader(body))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if svc.gotUpdate == nil {
		t.Fatal("Update was not called")
	}
	if svc.gotUpdate.Tags == nil {
		t.Error("empty tags array should be passed as non-nil (clears all tags)")
	}
	if len(svc.gotUpdate.Tags) != 0 {
		t.Errorf("tags = %v, want empty", svc.gotUpdate.Tags)
	}
}

// TestDelete_Returns204 は削除成功で204が返ることを検証する。
func TestDelete_Returns204(t *testing.T) {
	b := sampleBookmark()
	svc := &fakeBookmarkService{bookmark: b}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/bookmarks/"+b.ID.String(), nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

// TestDelete_Forbidden はオーナー以外の削除で403が返ることを検証する。
func TestDelete_Forbidden(t *testing.T) {
	svc := &fakeBookmarkService{err: model.NewNotAllowedError()}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/bookmarks/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestToggleEndpoints_ReturnBookmark は4つのトグルエンドポイントが更新後の
// ブックマークを返すことを検証する。
func TestToggleEndpoints_ReturnBookmark(t *testing.T) {
	b := sampleBookmark()

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"保存の記録", http.MethodPost, "/save"},
		{"保存の取り消し", http.MethodDelete, "/save"},
		{"共有の記録", http.MethodPost, "/share"},
		{"共有の取り消し", http.MethodDelete, "/share"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBookmarkService{bookmark: b}
			r := newBookmarkRouter(svc)

			req := httptest.NewRequest(tt.method, "/api/bookmarks/"+b.ID.String()+tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}

			var got bookmarkResponse
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if got.ID != b.ID.String() {
				t.Errorf("id = %q, want %q", got.ID, b.ID.String())
			}
		})
	}
}

// TestToggle_Unauthenticated は未認証のトグルで401が返ることを検証する。
func TestToggle_Unauthenticated(t *testing.T) {
	svc := &fakeBookmarkService{err: model.NewNotAuthenticatedError()}
	r := newBookmarkRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks/"+uuid.NewString()+"/save", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
