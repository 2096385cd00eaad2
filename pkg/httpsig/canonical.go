package httpsig

import (
	"fmt"
	"net/http"
	"strings"
)

// CanonicalString builds the signing string for the given covered
// headers, one "name: value" line per header joined by newline. The
// pseudo-header (request-target) expands to the lower-cased method and
// the path. A covered header absent from the request fails the whole
// build: silently omitting it would let a proxy strip a header without
// invalidating the signature.
func CanonicalString(method, path string, header http.Header, covered []string) (string, error) {
	lines := make([]string, 0, len(covered))
	for _, name := range covered {
		lower := strings.ToLower(name)
		if lower == RequestTarget {
			lines = append(lines, fmt.Sprintf("%s: %s %s", RequestTarget, strings.ToLower(method), path))
			continue
		}
		raw := header.Values(name)
		if len(raw) == 0 {
			return "", fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}
		values := make([]string, len(raw))
		for i, v := range raw {
			values[i] = strings.TrimSpace(v)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", lower, strings.Join(values, ", ")))
	}
	return strings.Join(lines, "\n"), nil
}
