package crawler

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a URL to the form used when checking whether a page
// already links to the target:
//
//   - scheme and host are lower-cased
//   - the default port of the scheme (80 for http, 443 for https) is dropped
//   - userinfo, query string and fragment are dropped
//   - an empty path becomes "/"
//   - a single trailing slash is removed from any path other than "/"
//
// Two URLs point at the same page for our purposes when their normalized
// forms are equal. Strings that do not parse as absolute URLs are returned
// trimmed but otherwise untouched.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if path != "/" && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return scheme + "://" + hostKey(scheme, u) + path
}

// HostKey returns the lower-cased host of raw with the scheme's default
// port removed, or "" when raw is not an absolute URL.
func HostKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return hostKey(strings.ToLower(u.Scheme), u)
}

// IsHTTPURL reports whether raw is an absolute http or https URL with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

func hostKey(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return host
}
