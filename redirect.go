package accounts

import (
	"net/url"
	"strings"
)

// LocalURL returns target when it is a path on this application and
// fallback otherwise. Absolute URLs, scheme relative URLs ("//host") and
// backslash tricks ("/\host") are all rejected.
func LocalURL(target, fallback string) string {
	if fallback == "" {
		fallback = "/"
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return fallback
	}
	if !strings.HasPrefix(target, "/") {
		return fallback
	}
	if len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return fallback
	}
	if strings.ContainsAny(target, "\r\n\t") {
		return fallback
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}

// IsLocalURL reports whether target is accepted by LocalURL.
func IsLocalURL(target string) bool {
	const sentinel = "\x00"
	return LocalURL(target, sentinel) != sentinel
}

// BuildLink joins base and path and appends the query, skipping empty values.
// An empty base yields a root relative link.
func BuildLink(base, path string, query map[string]string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	values := url.Values{}
	for k, v := range query {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}

	link := base + path
	if encoded := values.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(link, "?") {
			sep = "&"
		}
		link += sep + encoded
	}
	return link
}
