package safeurl

import "testing"

func TestIsHTTPOrHTTPS(t *testing.T) {
	tests := []struct {
		url   string
		allow bool
	}{
		{"http://example.com/", true},
		{"https://example.com/path", true},
		{"HTTP://x", true},
		{"HTTPS://x", true},
		{" https://padded.example/a.m3u8 ", true},
		{"https://", false},
		{"file:///etc/passwd", false},
		{"ftp://example.com", false},
		{"", false},
		{"not-a-url", false},
		{"javascript:alert(1)", false},
	}
	for _, tt := range tests {
		got := IsHTTPOrHTTPS(tt.url)
		if got != tt.allow {
			t.Errorf("IsHTTPOrHTTPS(%q) = %v, want %v", tt.url, got, tt.allow)
		}
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https%3A%2F%2Fcdn.example%2Fa.m3u8%3Ftoken%3Dx", "https://cdn.example/a.m3u8?token=x", true},
		{"https://cdn.example/plain.ts", "https://cdn.example/plain.ts", true},
		{"file%3A%2F%2F%2Fetc%2Fpasswd", "", false},
		{"https://cdn.example/seg+1.ts", "https://cdn.example/seg+1.ts", true},
		{"https%3A%2F%2Fcdn.example%2Fseg%2B1.ts", "https://cdn.example/seg+1.ts", true},
		{"%zz", "", false},
	}
	for _, tt := range tests {
		got, ok := Unescape(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Unescape(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
