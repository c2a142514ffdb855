// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role はアカウントのロールを表す閉じた列挙型。
// 認可判定は文字列比較ではなく、この型の述語メソッドで行う。
type Role string

const (
	// RoleUser は一般ユーザー。自身のリソースの作成・更新・削除が可能。
	RoleUser Role = "USER"
	// RoleAdmin は管理者。全リソースの更新・削除が可能。
	RoleAdmin Role = "ADMIN"
)

// ParseRole は文字列をRoleに変換する。未知の値はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// IsAdmin は管理者ロールかどうかを返す。
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// CanWrite はリソースの書き込み操作が許可されるロールかどうかを返す。
func (r Role) CanWrite() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account は認証済みユーザーのローカルアカウントを表す。
// 外部IdP（Google等）の検証済みIDと1対1で対応する。
// (Provider, ProviderSubject)、Email、Usernameはそれぞれ一意。
type Account struct {
	ID              uuid.UUID
	Provider        string
	ProviderSubject string
	Email           string
	Name            string
	Username        string
	Bio             string
	AvatarURL       string
	Role            Role
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
