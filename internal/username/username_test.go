package username

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
)

// Normalizeの出力が ^[a-z0-9]([a-z0-9_]{0,28}[a-z0-9])?$ または空文字列であることを検証
func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"英数字のみ", "alice", "alice"},
		{"大文字は小文字化", "Alice", "alice"},
		{"記号はアンダースコアに置換", "Ann!!", "ann"},
		{"記号の連続は1つに圧縮", "a--b..c", "a_b_c"},
		{"先頭末尾のアンダースコアを除去", "__hello__", "hello"},
		{"前後の空白を除去", "  bob  ", "bob"},
		{"空入力", "", ""},
		{"記号のみ", "!!!", ""},
		{"日本語は置換される", "山田taro", "taro"},
		{"メール形式", "a.b@ex.com", "a_b_ex_com"},
		{"30文字に切り詰め", "abcdefghijklmnopqrstuvwxyz0123456789", "abcdefghijklmnopqrstuvwxyz0123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// 任意入力に対してNormalizeの出力形式と長さの不変条件が守られることを検証
func TestNormalize_OutputInvariant(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z0-9]([a-z0-9_]{0,28}[a-z0-9])?$`)

	inputs := []string{
		"", "a", "_", "a_", "_a", "ABC-def_GHI", "!!!", "日本語のみ",
		"very-long-name-with-many-separators-and-more-and-more",
		"trailing_underscore_after_truncation_x",
		"a@b.c", "  spaces  everywhere  ",
	}

	for _, in := range inputs {
		got := Normalize(in)
		if got == "" {
			continue
		}
		if len(got) > 30 {
			t.Errorf("Normalize(%q) = %q exceeds 30 chars", in, got)
		}
		if !pattern.MatchString(got) {
			t.Errorf("Normalize(%q) = %q does not match handle pattern", in, got)
		}
	}
}

// BaseFromEmailがローカル部を正規化して返すことを検証
func TestBaseFromEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ann@example.com", "ann"},
		{"a.b@example.com", "a_b"},
		{"@example.com", "example_com"},
		{"noatsign", "noatsign"},
	}
	for _, tt := range tests {
		if got := BaseFromEmail(tt.in); got != tt.want {
			t.Errorf("BaseFromEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// 未使用の基底ハンドルがそのまま返ることを検証
func TestResolver_ResolveUnique_BaseAvailable(t *testing.T) {
	r := NewResolver(func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error) {
		return false, nil
	})

	got, err := r.ResolveUnique(context.Background(), "ann", nil)
	if err != nil {
		t.Fatalf("ResolveUnique returned error: %v", err)
	}
	if got != "ann" {
		t.Errorf("expected ann, got %q", got)
	}
}

// 使用済みの場合に連番サフィックスで探索することを検証
func TestResolver_ResolveUnique_SequentialSuffix(t *testing.T) {
	taken := map[string]bool{"ann": true, "ann1": true, "ann2": true}
	r := NewResolver(func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error) {
		return taken[candidate], nil
	})

	got, err := r.ResolveUnique(context.Background(), "ann", nil)
	if err != nil {
		t.Fatalf("ResolveUnique returned error: %v", err)
	}
	if got != "ann3" {
		t.Errorf("expected ann3, got %q", got)
	}
}

// 空の基底ハンドルが"user"にフォールバックすることを検証
func TestResolver_ResolveUnique_EmptyBase(t *testing.T) {
	r := NewResolver(func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error) {
		return false, nil
	})

	got, err := r.ResolveUnique(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("ResolveUnique returned error: %v", err)
	}
	if got != "user" {
		t.Errorf("expected user, got %q", got)
	}
}

// 200回の連番探索失敗後にランダムサフィックスへフォールバックすることを検証
func TestResolver_ResolveUnique_RandomFallback(t *testing.T) {
	calls := 0
	r := NewResolver(func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error) {
		calls++
		// 連番候補はすべて使用済み、ランダムサフィックス候補のみ未使用とする
		return calls <= 200, nil
	})

	got, err := r.ResolveUnique(context.Background(), "ann", nil)
	if err != nil {
		t.Fatalf("ResolveUnique returned error: %v", err)
	}
	if len(got) > 30 {
		t.Errorf("resolved handle %q exceeds 30 chars", got)
	}
	if matched, _ := regexp.MatchString(`^ann_[0-9a-f]{6}$`, got); !matched {
		t.Errorf("expected random suffix fallback, got %q", got)
	}
}

// excludeIDがストアポートへ伝播することを検証
func TestResolver_ResolveUnique_PassesExcludeID(t *testing.T) {
	selfID := uuid.New()
	var gotExclude *uuid.UUID
	r := NewResolver(func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error) {
		gotExclude = excludeID
		return false, nil
	})

	if _, err := r.ResolveUnique(context.Background(), "ann", &selfID); err != nil {
		t.Fatalf("ResolveUnique returned error: %v", err)
	}
	if gotExclude == nil || *gotExclude != selfID {
		t.Errorf("expected excludeID %v to be passed, got %v", selfID, gotExclude)
	}
}

// 同一基底で逐次解決すると異なるハンドルが返ることを検証（ストアに挿入を模擬）
func TestResolver_ResolveUnique_SequentialCallsDiffer(t *testing.T) {
	taken := map[string]bool{}
	r := NewResolver(func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error) {
		return taken[candidate], nil
	})

	first, err := r.ResolveUnique(context.Background(), "bob", nil)
	if err != nil {
		t.Fatalf("first ResolveUnique returned error: %v", err)
	}
	taken[first] = true

	second, err := r.ResolveUnique(context.Background(), "bob", nil)
	if err != nil {
		t.Fatalf("second ResolveUnique returned error: %v", err)
	}
	if first == second {
		t.Errorf("expected different handles, both were %q", first)
	}
}
