package tenant

import (
	"strings"
	"unicode"
)

// DeriveSlug turns a display name into slug form: lowercase, runs of
// non-alphanumeric characters collapsed to single dashes, trimmed.
// Collision disambiguation (numeric suffix) is the service's job
// because it needs a uniqueness lookup.
func DeriveSlug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "tenant"
	}
	return slug
}
