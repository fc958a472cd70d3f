// Package urlnorm normalizes URLs before they enter the job queue and
// derives a stable fingerprint used for content-record deduplication.
package urlnorm

import (
	"net/url"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// trackingPrefixes are query-parameter prefixes stripped during
// normalization; trackingParams are exact-match parameter names.
var trackingPrefixes = []string{"utm_"}

var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"_ga":    true,
}

// Normalize lowercases the host and scheme, trims whitespace, and strips
// tracking parameters (utm_*, fbclid, gclid, _ga, ref=) from a raw URL. If
// the input does not parse as a URL with a host, it returns the trimmed
// input lowercased.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if lower == "ref" || trackingParams[lower] {
			q.Del(key)
			continue
		}
		for _, prefix := range trackingPrefixes {
			if strings.HasPrefix(lower, prefix) {
				q.Del(key)
				break
			}
		}
	}
	u.RawQuery = encodeSorted(q)

	normalized := u.String()
	return strings.TrimSuffix(normalized, "?")
}

// encodeSorted re-encodes query values in a deterministic key order so the
// same logical query string always normalizes identically.
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		for j, v := range q[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Fingerprint derives a stable dedup key for a URL: it normalizes first,
// then hashes with blake3. It never panics: a non-URL input is hashed in
// its trimmed, lowercased form. Hashing an already-normalized URL gives the
// same value as hashing the raw URL it came from.
func Fingerprint(raw string) string {
	normalized := Normalize(raw)
	sum := blake3.Sum256([]byte(normalized))
	return hexEncode(sum[:])
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
