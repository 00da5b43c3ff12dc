package api

import (
	"strings"
)

// apiSuffix is the path prefix every REST endpoint lives under.
const apiSuffix = "/api"

// NormalizeBaseURL turns a configured origin into the REST base URL.
// Trailing slashes are stripped; if the result already ends in /api
// (any case) it is used as-is, otherwise /api is appended.
// NormalizeBaseURL(NormalizeBaseURL(x)) == NormalizeBaseURL(x).
func NormalizeBaseURL(origin string) string {
	base := strings.TrimRight(strings.TrimSpace(origin), "/")
	if hasAPISuffix(base) {
		return base
	}
	return base + apiSuffix
}

// Origin returns the configured origin with any trailing /api removed.
func Origin(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if hasAPISuffix(base) {
		base = base[:len(base)-len(apiSuffix)]
	}
	return strings.TrimRight(base, "/")
}

// SocketOrigin derives the realtime socket origin from a base URL:
// the /api suffix is dropped and http(s) becomes ws(s).
func SocketOrigin(base string) string {
	origin := Origin(base)
	switch {
	case strings.HasPrefix(origin, "https://"):
		return "wss://" + strings.TrimPrefix(origin, "https://")
	case strings.HasPrefix(origin, "http://"):
		return "ws://" + strings.TrimPrefix(origin, "http://")
	}
	return origin
}

func hasAPISuffix(s string) bool {
	return len(s) >= len(apiSuffix) && strings.EqualFold(s[len(s)-len(apiSuffix):], apiSuffix)
}
