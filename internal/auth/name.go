package auth

import "strings"

// DisplayName picks the name shown for a user: the provider's full name,
// then an explicit name, then the local part of the email.
func DisplayName(fullName, name, email string) string {
	if s := strings.TrimSpace(fullName); s != "" {
		return s
	}
	if s := strings.TrimSpace(name); s != "" {
		return s
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	if email != "" && !strings.Contains(email, "@") {
		return email
	}
	return "Unknown User"
}
