// Package slug maps human titles to filesystem- and URL-safe identifiers.
package slug

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxLen bounds the length of a generated slug.
const MaxLen = 200

// Make converts title to a slug made only of [a-z0-9-], with no leading,
// trailing or repeated hyphens. Accented Latin letters are folded to their
// base letter; everything else outside the alphabet is dropped. When nothing
// survives, the slug is derived from now so it is never empty.
func Make(title string, now time.Time) string {
	if s := Clean(title); s != "" {
		return s
	}
	return "post-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Clean is Make without the timestamp fallback. It may return "".
func Clean(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range norm.NFD.String(strings.ToLower(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || r == '_' || unicode.IsSpace(r):
			pendingHyphen = true
		}
		if b.Len() >= MaxLen {
			break
		}
	}
	s := b.String()
	if len(s) > MaxLen {
		s = s[:MaxLen]
	}
	return strings.Trim(s, "-")
}

// Valid reports whether s could have been produced by Make.
func Valid(s string) bool {
	if s == "" || len(s) > MaxLen || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	prevHyphen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if prevHyphen {
				return false
			}
			prevHyphen = true
		default:
			return false
		}
	}
	return true
}
