package security

import "testing"

// HTMLタグが除去されプレーンテキストが残ることを検証
func TestTextSanitizer_Sanitize(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"プレーンテキストはそのまま", "Go concurrency patterns", "Go concurrency patterns"},
		{"scriptタグを除去", `hello<script>alert("xss")</script>world`, "helloworld"},
		{"装飾タグも除去", "<strong>bold</strong> text", "bold text"},
		{"imgタグを除去", `<img src="https://example.com/x.png">caption`, "caption"},
		{"イベント属性付きタグを除去", `<a href="#" onclick="steal()">link</a>`, "link"},
		{"前後の空白を除去", "  title  ", "title"},
		{"空文字列", "", ""},
		{"日本語テキスト", "並行処理<b>入門</b>", "並行処理入門"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// 同一入力に対して冪等であることを検証
func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	in := `mixed <em>content</em> with <script>code</script>`
	once := s.Sanitize(in)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("sanitize is not idempotent: %q != %q", once, twice)
	}
}
