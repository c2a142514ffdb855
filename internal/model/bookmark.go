// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/google/uuid"
)

// Visibility はブックマークの公開範囲を表す。
type Visibility string

const (
	// VisibilityPublic は全員が閲覧可能。
	VisibilityPublic Visibility = "PUBLIC"
	// VisibilityPrivate はオーナーと管理者のみ閲覧可能。
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility は文字列をVisibilityに変換する。未知の値はfalseを返す。
func ParseVisibility(s string) (Visibility, bool) {
	switch Visibility(s) {
	case VisibilityPublic:
		return VisibilityPublic, true
	case VisibilityPrivate:
		return VisibilityPrivate, true
	default:
		return "", false
	}
}

// Bookmark は共有ブックマークを表す。
// Owner*フィールドは書き込み時点のアカウント表示情報のスナップショットであり、
// アカウント側の後続変更には追従しない（意図的な整合性トレードオフ）。
type Bookmark struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	OwnerName      string
	OwnerUsername  string
	OwnerAvatarURL string
	Title          string
	URL            string
	Description    string
	Tags           []string
	Visibility     Visibility
	SavedCount     int
	SharedCount    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InteractionKind はアカウントとブックマーク間のインタラクション種別を表す。
// save/shareは構造的に同一で、(bookmark, account, kind)ごとに高々1レコード。
type InteractionKind string

const (
	// InteractionSave は保存（あとで読む）。
	InteractionSave InteractionKind = "save"
	// InteractionShare は共有。
	InteractionShare InteractionKind = "share"
)

// BookmarkPage はページネーション付きのブックマーク一覧。
type BookmarkPage struct {
	Items []*Bookmark
	Page  int
	Size  int
	Total int64
}
