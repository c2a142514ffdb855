package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/bukuma/internal/model"
)

// PostgresBookmarkRepo はPostgreSQLを使用したブックマークリポジトリ。
type PostgresBookmarkRepo struct {
	db *sql.DB
}

// NewPostgresBookmarkRepo はPostgresBookmarkRepoを生成する。
func NewPostgresBookmarkRepo(db *sql.DB) *PostgresBookmarkRepo {
	return &PostgresBookmarkRepo{db: db}
}

// interactionTarget は保存/共有の種別ごとの結合テーブルとカウンタ列。
type interactionTarget struct {
	table   string
	counter string
}

// interactionTargets の列名はスキーマ定義に対応する。SQLへ直接埋め込むため
// この表以外の値を渡してはならない。
var interactionTargets = map[model.InteractionKind]interactionTarget{
	model.InteractionSave:  {table: "bookmark_saves", counter: "saved_count"},
	model.InteractionShare: {table: "bookmark_shares", counter: "shared_count"},
}

const bookmarkColumns = `id, owner_id, owner_name, owner_username, owner_avatar_url, title, url, description, tags, visibility, saved_count, shared_count, created_at, updated_at`

// scanBookmark は1行をBookmarkに読み取る。
func scanBookmark(row interface{ Scan(dest ...any) error }) (*model.Bookmark, error) {
	b := &model.Bookmark{}
	var visibility string
	var description, ownerAvatarURL sql.NullString
	err := row.Scan(
		&b.ID, &b.OwnerID, &b.OwnerName, &b.OwnerUsername, &ownerAvatarURL,
		&b.Title, &b.URL, &description, pq.Array(&b.Tags), &visibility,
		&b.SavedCount, &b.SharedCount, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Description = description.String
	b.OwnerAvatarURL = ownerAvatarURL.String
	if parsed, ok := model.ParseVisibility(visibility); ok {
		b.Visibility = parsed
	}
	return b, nil
}

// FindByID は指定IDのブックマークを取得する。見つからない場合はnilを返す。
func (r *PostgresBookmarkRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Bookmark, error) {
	b, err := scanBookmark(r.db.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark by ID: %w", err)
	}
	return b, nil
}

// Create はブックマークを作成する。
func (r *PostgresBookmarkRepo) Create(ctx context.Context, bookmark *model.Bookmark) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookmarks (id, owner_id, owner_name, owner_username, owner_avatar_url, title, url, description, tags, visibility, saved_count, shared_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		bookmark.ID, bookmark.OwnerID, bookmark.OwnerName, bookmark.OwnerUsername,
		nullString(bookmark.OwnerAvatarURL), bookmark.Title, bookmark.URL,
		nullString(bookmark.Description), pq.Array(bookmark.Tags), string(bookmark.Visibility),
		bookmark.SavedCount, bookmark.SharedCount, bookmark.CreatedAt, bookmark.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bookmark: %w", err)
	}
	return nil
}

// Update はブックマーク情報を更新する。カウンタは対象外（結合行の操作でのみ変わる）。
func (r *PostgresBookmarkRepo) Update(ctx context.Context, bookmark *model.Bookmark) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookmarks
		 SET title = $2, url = $3, description = $4, tags = $5, visibility = $6, updated_at = $7
		 WHERE id = $1`,
		bookmark.ID, bookmark.Title, bookmark.URL, nullString(bookmark.Description),
		pq.Array(bookmark.Tags), string(bookmark.Visibility), bookmark.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update bookmark: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("bookmark not found: %s", bookmark.ID)
	}
	return nil
}

// Delete は指定IDのブックマークを削除する。結合行はCASCADE削除される。
func (r *PostgresBookmarkRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("bookmark not found: %s", id)
	}
	return nil
}

// ListPublic は公開ブックマークを新しい順に取得する。
func (r *PostgresBookmarkRepo) ListPublic(ctx context.Context, tag string, page, size int) ([]*model.Bookmark, int64, error) {
	where := `visibility = 'PUBLIC'`
	args := []any{}
	if tag != "" {
		where += ` AND $1 = ANY(tags)`
		args = append(args, strings.ToLower(tag))
	}
	return r.list(ctx, where, args, page, size, "created_at DESC")
}

// ListByOwner はオーナーの全ブックマークを新しい順に取得する。
func (r *PostgresBookmarkRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, size int) ([]*model.Bookmark, int64, error) {
	return r.list(ctx, `owner_id = $1`, []any{ownerID}, page, size, "created_at DESC")
}

// ListPublicByUsername は指定ユーザー名のオーナーの公開ブックマークを取得する。
// ユーザー名の照合は大文字小文字を区別しない。
func (r *PostgresBookmarkRepo) ListPublicByUsername(ctx context.Context, username string, page, size int) ([]*model.Bookmark, int64, error) {
	return r.list(ctx,
		`visibility = 'PUBLIC' AND lower(owner_username) = lower($1)`,
		[]any{username}, page, size, "created_at DESC")
}

// list はWHERE句を共有する一覧クエリの共通実装。
func (r *PostgresBookmarkRepo) list(ctx context.Context, where string, args []any, page, size int, orderBy string) ([]*model.Bookmark, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count bookmarks: %w", err)
	}

	limitArgs := append(args, size, page*size)
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM bookmarks WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
			bookmarkColumns, where, orderBy, len(args)+1, len(args)+2),
		limitArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []*model.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}
	return bookmarks, total, nil
}

// ListSavedBy はアカウントが保存したブックマークを保存日時の新しい順に取得する。
func (r *PostgresBookmarkRepo) ListSavedBy(ctx context.Context, accountID uuid.UUID, page, size int) ([]*model.Bookmark, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmark_saves WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count saved bookmarks: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.owner_id, b.owner_name, b.owner_username, b.owner_avatar_url,
		        b.title, b.url, b.description, b.tags, b.visibility,
		        b.saved_count, b.shared_count, b.created_at, b.updated_at
		 FROM bookmarks b
		 JOIN bookmark_saves s ON s.bookmark_id = b.id
		 WHERE s.account_id = $1
		 ORDER BY s.created_at DESC
		 LIMIT $2 OFFSET $3`,
		accountID, size, page*size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list saved bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []*model.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate saved bookmarks: %w", err)
	}
	return bookmarks, total, nil
}

// AddInteraction は結合行の挿入とカウンタ加算を単一トランザクションで行う。
// 既に結合行がある場合はカウンタを変えずfalseを返す。
func (r *PostgresBookmarkRepo) AddInteraction(ctx context.Context, kind model.InteractionKind, bookmarkID, accountID uuid.UUID) (bool, error) {
	target, ok := interactionTargets[kind]
	if !ok {
		return false, fmt.Errorf("unknown interaction kind: %s", kind)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (bookmark_id, account_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (bookmark_id, account_id) DO NOTHING`, target.table),
		bookmarkID, accountID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert interaction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	inserted := rowsAffected == 1
	if inserted {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE bookmarks SET %s = %s + 1, updated_at = NOW() WHERE id = $1`,
				target.counter, target.counter),
			bookmarkID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to increment counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// RemoveInteraction は結合行の削除とカウンタ減算を単一トランザクションで行う。
// 結合行がない場合はカウンタを変えずfalseを返す。カウンタは0で下限クランプする。
func (r *PostgresBookmarkRepo) RemoveInteraction(ctx context.Context, kind model.InteractionKind, bookmarkID, accountID uuid.UUID) (bool, error) {
	target, ok := interactionTargets[kind]
	if !ok {
		return false, fmt.Errorf("unknown interaction kind: %s", kind)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE bookmark_id = $1 AND account_id = $2`, target.table),
		bookmarkID, accountID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete interaction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	deleted := rowsAffected == 1
	if deleted {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE bookmarks SET %s = GREATEST(%s - 1, 0), updated_at = NOW() WHERE id = $1`,
				target.counter, target.counter),
			bookmarkID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to decrement counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

// HasInteraction はアカウントがブックマークを保存/共有済みかを返す。
func (r *PostgresBookmarkRepo) HasInteraction(ctx context.Context, kind model.InteractionKind, bookmarkID, accountID uuid.UUID) (bool, error) {
	target, ok := interactionTargets[kind]
	if !ok {
		return false, fmt.Errorf("unknown interaction kind: %s", kind)
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE bookmark_id = $1 AND account_id = $2)`, target.table),
		bookmarkID, accountID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check interaction: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ BookmarkRepository = (*PostgresBookmarkRepo)(nil)
