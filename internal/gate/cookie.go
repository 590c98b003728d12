package gate

import "strings"

// DefaultCookieName is the cookie that carries the access credential.
const DefaultCookieName = "CF_Authorization"

// Jar is a parsed Cookie header: cookie names mapped to their raw
// values. Values are kept byte for byte; no unescaping, no quote
// stripping.
type Jar map[string]string

// ParseCookieHeader splits a raw Cookie header into a Jar.
//
// Each `;`-separated entry is trimmed and split on its FIRST `=`, so
// values keep any embedded `=`. An entry with no `=` maps the whole
// entry to the empty value. Entries with an empty name are dropped.
// When a name repeats, the last occurrence wins. Parsing never fails;
// a header with no usable entries yields an empty jar.
func ParseCookieHeader(raw string) Jar {
	jar := make(Jar)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, _ := strings.Cut(entry, "=")
		if name == "" {
			continue
		}
		jar[name] = value
	}
	return jar
}

// Get returns the value for name, or the empty string when absent.
func (j Jar) Get(name string) string {
	return j[name]
}

// Has reports whether the jar contains name, even with an empty value.
func (j Jar) Has(name string) bool {
	_, ok := j[name]
	return ok
}
