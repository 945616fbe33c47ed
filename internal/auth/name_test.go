package auth

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name, fullName, given, email, want string
	}{
		{"full name wins", "Taro Yamada", "taro", "taro@example.com", "Taro Yamada"},
		{"explicit name", "", "Hanako", "h@example.com", "Hanako"},
		{"email local part", "", "", "jiro@example.com", "jiro"},
		{"nothing", "", "", "", "Unknown User"},
		{"whitespace only", "  ", " ", "", "Unknown User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.fullName, tt.given, tt.email); got != tt.want {
				t.Errorf("DisplayName = %q, want %q", got, tt.want)
			}
		})
	}
}
