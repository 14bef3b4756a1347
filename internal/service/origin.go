package service

import (
	"net/url"
	"strings"

	"github.com/templui/feedbackloop/internal/model"
)

// OriginAllowed reports whether candidate may submit to a project with the
// given allow-list. An empty allow-list admits everything.
//
// Literal entries match the bare hostname or hostname:port. Entries of the
// form "*.example.com" match any subdomain of example.com on a label
// boundary; example.com itself and notexample.com do not match.
func OriginAllowed(allowList []string, candidate string) bool {
	if len(allowList) == 0 {
		return true
	}

	hostname, hostport, ok := parseOrigin(candidate)
	if !ok {
		return false
	}

	for _, raw := range allowList {
		entry := normalizeOriginEntry(raw)
		if entry == "" {
			continue
		}

		if suffix, isWildcard := strings.CutPrefix(entry, "*"); isWildcard {
			target := hostname
			if strings.Contains(suffix, ":") {
				target = hostport
			}
			if strings.HasPrefix(suffix, ".") && len(target) > len(suffix) && strings.HasSuffix(target, suffix) {
				return true
			}
			continue
		}

		if entry == hostname || entry == hostport {
			return true
		}
	}

	return false
}

// CandidateOrigin picks the origin to check: the Origin header, or the
// submission's page URL when the header is absent or opaque ("null").
func CandidateOrigin(header, pageURL string) string {
	header = strings.TrimSpace(header)
	if header == "" || header == "null" {
		return strings.TrimSpace(pageURL)
	}
	return header
}

// CheckOrigin enforces the project's allow-list against candidate.
func CheckOrigin(project *model.Project, candidate string) error {
	if OriginAllowed(project.AllowedOrigins, candidate) {
		return nil
	}
	return newError(ErrOriginNotAllowed, "Origin not allowed", nil)
}

// parseOrigin extracts the lowercase hostname and host:port from an origin
// or URL. Scheme-less values such as "app.example.com" are accepted.
func parseOrigin(raw string) (hostname, hostport string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}

	hostname = strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", "", false
	}

	hostport = hostname
	if port := u.Port(); port != "" {
		hostport = hostname + ":" + port
	}

	return hostname, hostport, true
}

// normalizeOriginEntry lowercases an allow-list entry and strips any scheme,
// path or trailing dot so "https://App.example.com/" becomes "app.example.com".
func normalizeOriginEntry(entry string) string {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if _, rest, found := strings.Cut(entry, "://"); found {
		entry = rest
	}
	if i := strings.IndexAny(entry, "/?#"); i >= 0 {
		entry = entry[:i]
	}
	return strings.TrimSuffix(entry, ".")
}
