package pubstatic

import (
	"net/url"
	"path"
	"strings"

	"github.com/goliatone/go-slug"
)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	if out, err := slug.Normalize(strings.TrimSpace(s)); err == nil && out != "" {
		return out
	}
	return asciiSlug(s)
}

// asciiSlug keeps ASCII letters and digits and joins the rest with dashes.
func asciiSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// AbsoluteURL resolves a root-relative URL against base. base is expected to
// carry the path prefix already, so "/blog/x/" on "https://h/p/" becomes
// "https://h/p/blog/x/".
func AbsoluteURL(base, p string) string {
	if base == "" {
		return p
	}
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p
	}
	b, err := url.Parse(base)
	if err != nil {
		return p
	}
	trailing := strings.HasSuffix(p, "/")
	b.Path = path.Join("/", b.Path, p)
	if trailing && !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.String()
}

// WithPathPrefix prefixes a root-relative URL with prefix. Protocol-relative
// and absolute URLs are returned unchanged.
func WithPathPrefix(prefix, p string) string {
	if prefix == "" || prefix == "/" {
		return p
	}
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return p
	}
	return strings.TrimSuffix(prefix, "/") + p
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// JoinTags joins tags with ", ".
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

func isLocalURL(v string) bool {
	if v == "" || strings.HasPrefix(v, "//") || strings.HasPrefix(v, "#") {
		return false
	}
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
