package upstream

import (
	"errors"
	"net/url"
	"strings"
)

var ErrDisallowedUpstream = errors.New("disallowed upstream")

// IDPlaceholder may terminate an entry to allow exactly one path segment in its place,
// e.g. "http://user-service/api/user/{id}".
const IDPlaceholder = "{id}"

// Allowlist is the static set of URLs the gateway may call. It is built once from
// configuration and only read afterwards, so it is safe for concurrent use.
type Allowlist struct {
	entries  []string
	exact    map[string]struct{}
	prefixes []string
}

func NewAllowlist(entries ...string) *Allowlist {
	a := &Allowlist{exact: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		a.entries = append(a.entries, entry)

		if prefix, ok := strings.CutSuffix(entry, IDPlaceholder); ok && strings.HasSuffix(prefix, "/") {
			a.prefixes = append(a.prefixes, prefix)
			continue
		}
		a.exact[entry] = struct{}{}
	}
	return a
}

func (a *Allowlist) IsAllowed(rawURL string) bool {
	if a == nil {
		return false
	}
	if _, ok := a.exact[rawURL]; ok {
		return true
	}
	for _, prefix := range a.prefixes {
		if segment, ok := strings.CutPrefix(rawURL, prefix); ok && isSingleSegment(segment) {
			return true
		}
	}
	return false
}

func (a *Allowlist) Entries() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.entries))
	copy(out, a.entries)
	return out
}

func isSingleSegment(segment string) bool {
	if segment == "" || strings.ContainsAny(segment, "/?#") {
		return false
	}
	unescaped, err := url.PathUnescape(segment)
	if err != nil {
		return false
	}
	return unescaped != "." && unescaped != ".." && !strings.Contains(unescaped, "/")
}
