// Package bookmark はブックマークの公開範囲制御、所有権の強制、
// 保存・共有トグルのビジネスロジックを提供する。
package bookmark

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/events"
	"github.com/hitoshi/bukuma/internal/model"
	"github.com/hitoshi/bukuma/internal/repository"
	"github.com/hitoshi/bukuma/internal/security"
	"github.com/hitoshi/bukuma/internal/token"
)

// maxTagLength はタグ1つあたりの最大文字数。
const maxTagLength = 40

// ToggleMetrics はトグル操作のメトリクス記録のインターフェース。
type ToggleMetrics interface {
	RecordToggle(kind, op string)
}

// CreateRequest はブックマーク作成リクエスト。
type CreateRequest struct {
	Title       string
	URL         string
	Description string
	Tags        []string
	Visibility  string // 空の場合はPUBLIC
}

// UpdateRequest はブックマークの部分更新リクエスト。
// nilのフィールドは変更しない。
type UpdateRequest struct {
	Title       *string
	URL         *string
	Description *string
	Tags        []string // nilは変更なし、空スライスは全削除
	Visibility  *string
}

// Service はブックマークに関するビジネスロジックを提供する。
type Service struct {
	repo      repository.BookmarkRepository
	publisher events.Publisher
	sanitizer security.TextSanitizerService
	metrics   ToggleMetrics
}

// NewService はServiceを生成する。
func NewService(
	repo repository.BookmarkRepository,
	publisher events.Publisher,
	sanitizer security.TextSanitizerService,
	metrics ToggleMetrics,
) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// ListPublic は公開ブックマークの一覧を返す。認証不要。
// tagが空でない場合はタグでフィルタする。
func (s *Service) ListPublic(ctx context.Context, tag string, page, size int) (*model.BookmarkPage, error) {
	items, total, err := s.repo.ListPublic(ctx, strings.TrimSpace(tag), page, size)
	if err != nil {
		return nil, err
	}
	return &model.BookmarkPage{Items: items, Page: page, Size: size, Total: total}, nil
}

// ListMine は自身の全ブックマーク（公開・非公開とも）の一覧を返す。
func (s *Service) ListMine(ctx context.Context, claims *token.Claims, page, size int) (*model.BookmarkPage, error) {
	if claims == nil {
		return nil, model.NewNotAuthenticatedError()
	}
	items, total, err := s.repo.ListByOwner(ctx, claims.AccountID, page, size)
	if err != nil {
		return nil, err
	}
	return &model.BookmarkPage{Items: items, Page: page, Size: size, Total: total}, nil
}

// ListSaved は自身が保存したブックマークの一覧を保存日時の新しい順に返す。
func (s *Service) ListSaved(ctx context.Context, claims *token.Claims, page, size int) (*model.BookmarkPage, error) {
	if claims == nil {
		return nil, model.NewNotAuthenticatedError()
	}
	items, total, err := s.repo.ListSavedBy(ctx, claims.AccountID, page, size)
	if err != nil {
		return nil, err
	}
	return &model.BookmarkPage{Items: items, Page: page, Size: size, Total: total}, nil
}

// ListByUsername は指定ユーザー名のオーナーの公開ブックマーク一覧を返す。認証不要。
func (s *Service) ListByUsername(ctx context.Context, username string, page, size int) (*model.BookmarkPage, error) {
	items, total, err := s.repo.ListPublicByUsername(ctx, username, page, size)
	if err != nil {
		return nil, err
	}
	return &model.BookmarkPage{Items: items, Page: page, Size: size, Total: total}, nil
}

// Get は指定IDのブックマークを取得する。
// 非公開のブックマークはオーナーまたは管理者のみ取得できる。
// 存在するがアクセスが許可されない場合はpermissionエラー、
// 存在しない場合のみnot_foundエラーを返す。claimsはnil可（未認証）。
func (s *Service) Get(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	bookmark, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bookmark == nil {
		return nil, model.NewBookmarkNotFoundError(id.String())
	}
	if err := s.authorizeRead(bookmark, claims); err != nil {
		return nil, err
	}
	return bookmark, nil
}

// Create はブックマークを作成する。
// オーナーの表示情報は作成時点のトークンクレームから複製する（スナップショット方式）。
func (s *Service) Create(ctx context.Context, claims *token.Claims, req CreateRequest) (*model.Bookmark, error) {
	if err := requireWriter(claims); err != nil {
		return nil, err
	}

	title, err := s.requireNonBlank(req.Title, "title")
	if err != nil {
		return nil, err
	}
	validURL, err := validateURL(req.URL)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeTags(req.Tags)
	if err != nil {
		return nil, err
	}
	visibility, err := parseVisibility(req.Visibility, model.VisibilityPublic)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	bookmark := &model.Bookmark{
		ID:             uuid.New(),
		OwnerID:        claims.AccountID,
		OwnerName:      ownerName(claims),
		OwnerUsername:  ownerUsername(claims),
		OwnerAvatarURL: claims.AvatarURL,
		Title:          title,
		URL:            validURL,
		Description:    s.sanitizer.Sanitize(req.Description),
		Tags:           tags,
		Visibility:     visibility,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, bookmark); err != nil {
		return nil, err
	}

	slog.Info("bookmark created",
		slog.String("bookmark_id", bookmark.ID.String()),
		slog.String("owner_id", bookmark.OwnerID.String()),
	)
	return bookmark, nil
}

// Update はブックマークを部分更新する。オーナーまたは管理者のみ。
// 指定されたフィールドのみ検証・反映し、変更がなければ書き込まない。
func (s *Service) Update(ctx context.Context, claims *token.Claims, id uuid.UUID, req UpdateRequest) (*model.Bookmark, error) {
	if err := requireWriter(claims); err != nil {
		return nil, err
	}

	bookmark, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bookmark == nil {
		return nil, model.NewBookmarkNotFoundError(id.String())
	}
	if err := enforceOwnerOrAdmin(bookmark, claims); err != nil {
		return nil, err
	}

	changed := false
	if req.Title != nil {
		title, err := s.requireNonBlank(*req.Title, "title")
		if err != nil {
			return nil, err
		}
		if title != bookmark.Title {
			bookmark.Title = title
			changed = true
		}
	}
	if req.URL != nil {
		validURL, err := validateURL(*req.URL)
		if err != nil {
			return nil, err
		}
		if validURL != bookmark.URL {
			bookmark.URL = validURL
			changed = true
		}
	}
	if req.Description != nil {
		if description := s.sanitizer.Sanitize(*req.Description); description != bookmark.Description {
			bookmark.Description = description
			changed = true
		}
	}
	if req.Tags != nil {
		tags, err := normalizeTags(req.Tags)
		if err != nil {
			return nil, err
		}
		if !equalTags(tags, bookmark.Tags) {
			bookmark.Tags = tags
			changed = true
		}
	}
	if req.Visibility != nil {
		visibility, err := parseVisibility(*req.Visibility, "")
		if err != nil {
			return nil, err
		}
		if visibility != bookmark.Visibility {
			bookmark.Visibility = visibility
			changed = true
		}
	}

	if changed {
		bookmark.UpdatedAt = time.Now()
		if err := s.repo.Update(ctx, bookmark); err != nil {
			return nil, err
		}
	}
	return bookmark, nil
}

// Delete はブックマークを削除する。オーナーまたは管理者のみ。
func (s *Service) Delete(ctx context.Context, claims *token.Claims, id uuid.UUID) error {
	if err := requireWriter(claims); err != nil {
		return err
	}

	bookmark, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if bookmark == nil {
		return model.NewBookmarkNotFoundError(id.String())
	}
	if err := enforceOwnerOrAdmin(bookmark, claims); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("bookmark deleted",
		slog.String("bookmark_id", id.String()),
		slog.String("account_id", claims.AccountID.String()),
	)
	return nil
}

// RecordSave は保存を記録する。既に保存済みの場合は何も変えない（冪等）。
func (s *Service) RecordSave(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	return s.addInteraction(ctx, claims, id, model.InteractionSave, events.TopicBookmarkSaved)
}

// RemoveSave は保存を取り消す。保存していない場合は何も変えない（冪等）。
func (s *Service) RemoveSave(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	return s.removeInteraction(ctx, claims, id, model.InteractionSave)
}

// RecordShare は共有を記録する。既に共有済みの場合は何も変えない（冪等）。
func (s *Service) RecordShare(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	return s.addInteraction(ctx, claims, id, model.InteractionShare, events.TopicBookmarkShared)
}

// RemoveShare は共有を取り消す。共有していない場合は何も変えない（冪等）。
func (s *Service) RemoveShare(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	return s.removeInteraction(ctx, claims, id, model.InteractionShare)
}

// addInteraction はトグルの記録側の共通実装。
// 結合行が新規に挿入された場合のみイベントを発行する。
// イベント発行の失敗は記録の成否に影響させない。
func (s *Service) addInteraction(ctx context.Context, claims *token.Claims, id uuid.UUID, kind model.InteractionKind, topic string) (*model.Bookmark, error) {
	bookmark, err := s.gateInteraction(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	inserted, err := s.repo.AddInteraction(ctx, kind, id, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.metrics.RecordToggle(string(kind), "record")
		event := events.InteractionEvent{BookmarkID: id, AccountID: claims.AccountID}
		if err := s.publisher.Publish(ctx, topic, event); err != nil {
			slog.Warn("failed to publish interaction event",
				slog.String("topic", topic),
				slog.String("bookmark_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		// 応答用に最新のカウンタを読み直す
		bookmark, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if bookmark == nil {
			return nil, model.NewBookmarkNotFoundError(id.String())
		}
	}
	return bookmark, nil
}

// removeInteraction はトグルの取り消し側の共通実装。
func (s *Service) removeInteraction(ctx context.Context, claims *token.Claims, id uuid.UUID, kind model.InteractionKind) (*model.Bookmark, error) {
	bookmark, err := s.gateInteraction(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	deleted, err := s.repo.RemoveInteraction(ctx, kind, id, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if deleted {
		s.metrics.RecordToggle(string(kind), "remove")
		bookmark, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if bookmark == nil {
			return nil, model.NewBookmarkNotFoundError(id.String())
		}
	}
	return bookmark, nil
}

// gateInteraction はトグル操作の前提条件（認証、存在、公開範囲）を確認する。
func (s *Service) gateInteraction(ctx context.Context, claims *token.Claims, id uuid.UUID) (*model.Bookmark, error) {
	if claims == nil {
		return nil, model.NewNotAuthenticatedError()
	}
	bookmark, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bookmark == nil {
		return nil, model.NewBookmarkNotFoundError(id.String())
	}
	if err := s.authorizeRead(bookmark, claims); err != nil {
		return nil, err
	}
	return bookmark, nil
}

// authorizeRead は非公開ブックマークへのアクセスを検査する。
// 公開ブックマークは誰でも（未認証でも）読める。
func (s *Service) authorizeRead(bookmark *model.Bookmark, claims *token.Claims) error {
	if bookmark.Visibility != model.VisibilityPrivate {
		return nil
	}
	if claims == nil {
		return model.NewNotAllowedError()
	}
	if bookmark.OwnerID != claims.AccountID && !claims.IsAdmin() {
		return model.NewNotAllowedError()
	}
	return nil
}

// requireWriter は書き込み操作のロール要件を検査する。
func requireWriter(claims *token.Claims) error {
	if claims == nil {
		return model.NewNotAuthenticatedError()
	}
	if !claims.HasWriteRole() {
		return model.NewInsufficientRoleError()
	}
	return nil
}

// enforceOwnerOrAdmin は変更系操作をオーナーまたは管理者に限定する。
func enforceOwnerOrAdmin(bookmark *model.Bookmark, claims *token.Claims) error {
	if bookmark.OwnerID != claims.AccountID && !claims.IsAdmin() {
		return model.NewNotAllowedError()
	}
	return nil
}

// requireNonBlank は必須テキストフィールドを検証しサニタイズする。
func (s *Service) requireNonBlank(value, field string) (string, error) {
	cleaned := s.sanitizer.Sanitize(value)
	if cleaned == "" {
		return "", model.NewValidationError(field, "必須項目です")
	}
	return cleaned, nil
}

// validateURL はURLがスキームとホストを持つことを検証する。
func validateURL(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", model.NewValidationError("url", "必須項目です")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", model.NewInvalidURLError()
	}
	return parsed.String(), nil
}

// normalizeTags はタグを小文字化し、空要素を除き、挿入順を保って重複排除する。
func normalizeTags(tags []string) ([]string, error) {
	normalized := []string{}
	seen := map[string]bool{}
	for _, tag := range tags {
		cleaned := strings.ToLower(strings.TrimSpace(tag))
		if cleaned == "" || seen[cleaned] {
			continue
		}
		if len(cleaned) > maxTagLength {
			return nil, model.NewValidationError("tags", "タグは40文字以内で入力してください")
		}
		seen[cleaned] = true
		normalized = append(normalized, cleaned)
	}
	return normalized, nil
}

// parseVisibility は公開範囲の文字列を解釈する。空の場合はfallbackを返す。
func parseVisibility(value string, fallback model.Visibility) (model.Visibility, error) {
	if value == "" {
		if fallback == "" {
			return "", model.NewValidationError("visibility", "必須項目です")
		}
		return fallback, nil
	}
	parsed, ok := model.ParseVisibility(value)
	if !ok {
		return "", model.NewValidationError("visibility", "PUBLICまたはPRIVATEを指定してください")
	}
	return parsed, nil
}

// ownerName はクレームからオーナー表示名を導出する。
func ownerName(claims *token.Claims) string {
	if name := strings.TrimSpace(claims.Name); name != "" {
		return name
	}
	return "User"
}

// ownerUsername はクレームからオーナーのユーザー名を導出する。
func ownerUsername(claims *token.Claims) string {
	if username := strings.TrimSpace(claims.Username); username != "" {
		return strings.ToLower(username)
	}
	if at := strings.Index(claims.Email, "@"); at > 0 {
		return strings.ToLower(claims.Email[:at])
	}
	return "user"
}

// equalTags は正規化済みタグ列の同値比較。
func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
