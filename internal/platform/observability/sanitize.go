package observability

import (
	"strings"
	"unicode"
)

// Length caps for log fields. Anything longer is truncated so one bad
// request cannot flood a log line.
const (
	defaultStringLimit = 256
	routeLimit         = 180
	methodLimit        = 10
	userIDLimit        = 64
)

// sanitizeString strips control characters (keeping common whitespace)
// and truncates to limit.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}

	var b strings.Builder
	b.Grow(len(value))
	kept := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			switch r {
			case '\n', '\r', '\t':
			default:
				continue
			}
		}
		b.WriteRune(r)
		kept++
		if kept >= limit {
			break
		}
	}
	return b.String()
}

// SanitizeRoute normalises a route for logging. Empty routes become "/".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, routeLimit)
}

// SanitizeMethod strips control characters from an HTTP method.
func SanitizeMethod(method string) string {
	return sanitizeString(method, methodLimit)
}

// SanitizeUserID caps user identifiers so logs never carry arbitrary-length
// caller-supplied strings.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return sanitizeString(uid, userIDLimit)
}
