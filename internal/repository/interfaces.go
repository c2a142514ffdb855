// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/model"
)

// AccountStore はアカウントデータの永続化インターフェース。
type AccountStore interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error)

	// FindByProviderAndSubject は外部IdPの(provider, subject)でアカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndSubject(ctx context.Context, provider, subject string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByUsername はユーザー名でアカウントを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Account, error)

	// ExistsByUsername はユーザー名が使用済みかを返す。
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByUsernameAndIDNot は指定ID以外のアカウントがユーザー名を使用しているかを返す。
	// 自身のユーザー名変更時の一意性確認に使う。
	ExistsByUsernameAndIDNot(ctx context.Context, username string, id uuid.UUID) (bool, error)

	// Create はアカウントを作成する。
	Create(ctx context.Context, account *model.Account) error

	// Update はアカウント情報を更新する。
	Update(ctx context.Context, account *model.Account) error
}

// AccountTxRunner はアカウントストアの操作を単一トランザクションで実行する。
// ユーザー名の一意性確認と書き込みをアトミックにするために使う。
type AccountTxRunner interface {
	// InTx はfnをトランザクション内で実行する。fnがエラーを返した場合はロールバックする。
	InTx(ctx context.Context, fn func(store AccountStore) error) error
}

// BookmarkRepository はブックマークデータの永続化インターフェース。
type BookmarkRepository interface {
	// FindByID は指定IDのブックマークを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id uuid.UUID) (*model.Bookmark, error)

	// Create はブックマークを作成する。
	Create(ctx context.Context, bookmark *model.Bookmark) error

	// Update はブックマーク情報を更新する。
	Update(ctx context.Context, bookmark *model.Bookmark) error

	// Delete は指定IDのブックマークを削除する。
	// 関連する保存・共有の結合行はCASCADE削除される。
	Delete(ctx context.Context, id uuid.UUID) error

	// ListPublic は公開ブックマークを新しい順に取得する。
	// tagが空でない場合はタグでフィルタする。総件数も返す。
	ListPublic(ctx context.Context, tag string, page, size int) ([]*model.Bookmark, int64, error)

	// ListByOwner はオーナーの全ブックマーク（公開・非公開とも）を新しい順に取得する。
	ListByOwner(ctx context.Context, ownerID uuid.UUID, page, size int) ([]*model.Bookmark, int64, error)

	// ListPublicByUsername は指定ユーザー名のオーナーの公開ブックマークを新しい順に取得する。
	ListPublicByUsername(ctx context.Context, username string, page, size int) ([]*model.Bookmark, int64, error)

	// ListSavedBy はアカウントが保存したブックマークを保存日時の新しい順に取得する。
	ListSavedBy(ctx context.Context, accountID uuid.UUID, page, size int) ([]*model.Bookmark, int64, error)

	// AddInteraction は保存または共有の結合行を追加し、カウンタを加算する。
	// 既に結合行が存在する場合は何もせずfalseを返す（冪等）。
	// 結合行の挿入とカウンタ更新は単一トランザクションで行う。
	AddInteraction(ctx context.Context, kind model.InteractionKind, bookmarkID, accountID uuid.UUID) (bool, error)

	// RemoveInteraction は保存または共有の結合行を削除し、カウンタを減算する。
	// 結合行が存在しない場合は何もせずfalseを返す（冪等）。カウンタは0未満にならない。
	RemoveInteraction(ctx context.Context, kind model.InteractionKind, bookmarkID, accountID uuid.UUID) (bool, error)

	// HasInteraction はアカウントがブックマークを保存/共有済みかを返す。
	HasInteraction(ctx context.Context, kind model.InteractionKind, bookmarkID, accountID uuid.UUID) (bool, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
