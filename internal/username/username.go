// Package username はハンドル（ユーザー名）の正規化と一意性解決を提供する。
//
// 正規化ロジックはアカウント照合とプロフィール更新の両方から利用される共有実装。
// サービスごとにアルゴリズムを複製しないこと。
package username

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// maxLength はハンドルの最大文字数。
const maxLength = 30

// fallbackBase は正規化結果が空になった場合の基底ハンドル。
const fallbackBase = "user"

// maxSequentialAttempts は連番サフィックスによる探索の上限。
// これを超えるとランダムサフィックスにフォールバックする。
const maxSequentialAttempts = 200

var nonAlnumRuns = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize は生の入力をハンドル形式に正規化する。
// 小文字化し、英数字以外の連続を1つのアンダースコアに置換し、
// 先頭末尾のアンダースコアを除去して30文字に切り詰める。
// 切り詰め後に末尾へ現れたアンダースコアも除去する。
// 空入力は空文字列を返す。
func Normalize(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = nonAlnumRuns.ReplaceAllString(normalized, "_")
	normalized = strings.Trim(normalized, "_")
	if len(normalized) > maxLength {
		normalized = normalized[:maxLength]
		normalized = strings.TrimRight(normalized, "_")
	}
	return normalized
}

// BaseFromEmail はメールアドレスのローカル部から基底ハンドルを導出する。
func BaseFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return Normalize(email[:at])
	}
	return Normalize(email)
}

// ExistsFunc はハンドルの使用済み判定を行うストアポート。
// excludeIDが指定された場合、そのアカウント自身は除外して判定する
// （既存アカウントのリネーム時に使用）。
type ExistsFunc func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error)

// Resolver は基底ハンドルから未使用の一意なハンドルを解決する。
// 呼び出しは最終的なアカウント書き込みと同一トランザクション内で行うこと。
type Resolver struct {
	exists ExistsFunc
}

// NewResolver はResolverを生成する。
func NewResolver(exists ExistsFunc) *Resolver {
	return &Resolver{exists: exists}
}

// ResolveUnique は基底ハンドルに連番サフィックスを付与しながら
// 未使用のハンドルを探索する。200回失敗した後は6文字のランダムサフィックスに
// フォールバックし、最初に未使用となった候補を受理する
// （残留衝突リスクは許容する。無限の再試行はしない）。
func (r *Resolver) ResolveUnique(ctx context.Context, base string, excludeID *uuid.UUID) (string, error) {
	if base == "" {
		base = fallbackBase
	}

	candidate := base
	for attempt := 1; attempt <= maxSequentialAttempts; attempt++ {
		taken, err := r.exists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check username existence: %w", err)
		}
		if !taken {
			return candidate, nil
		}

		candidate = truncate(base + fmt.Sprintf("%d", attempt))
	}

	// 連番探索の上限を超えた。ランダムサフィックスで決着させる。
	prefix := base
	if len(prefix) > maxLength-7 {
		prefix = prefix[:maxLength-7]
		prefix = strings.TrimRight(prefix, "_")
	}
	for {
		candidate = prefix + "_" + uuid.NewString()[:6]
		taken, err := r.exists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check username existence: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
}

// truncate はハンドルを最大長に切り詰める。
func truncate(s string) string {
	if len(s) > maxLength {
		return s[:maxLength]
	}
	return s
}
