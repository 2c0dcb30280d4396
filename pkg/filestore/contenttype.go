package filestore

import (
	"mime"
	"strings"
)

// contentTypes is a normalized MIME allow-list.
type contentTypes struct {
	allowed []string
	set     map[string]struct{}
}

func newContentTypes(types []string) contentTypes {
	ct := contentTypes{set: make(map[string]struct{}, len(types))}
	for _, t := range types {
		n := normalizeContentType(t)
		if n == "" {
			continue
		}
		if _, dup := ct.set[n]; dup {
			continue
		}
		ct.set[n] = struct{}{}
		ct.allowed = append(ct.allowed, n)
	}
	return ct
}

// check returns the normalized content type or a *ContentTypeError.
func (ct contentTypes) check(contentType string) (string, error) {
	n := normalizeContentType(contentType)
	if _, ok := ct.set[n]; !ok || n == "" {
		return "", &ContentTypeError{ContentType: contentType, Allowed: ct.allowed}
	}
	return n, nil
}

// normalizeContentType strips media type parameters and lower-cases the result,
// so "Text/Plain; charset=utf-8" becomes "text/plain".
func normalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
