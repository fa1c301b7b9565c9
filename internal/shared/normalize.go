package shared

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query keys dropped during normalization. Any key starting with "utm_" is dropped as well.
var trackingParams = map[string]struct{}{
	"source":   {},
	"ref":      {},
	"referral": {},
	"fbclid":   {},
	"gclid":    {},
	"_ga":      {},
	"mc_cid":   {},
	"mc_eid":   {},
	"yclid":    {},
	"_hsenc":   {},
	"_hsmi":    {},
	"mkt_tok":  {},
	"campaign": {},
	"medium":   {},
	"term":     {},
	"content":  {},
}

// IsTrackingParam reports whether a query key is stripped by [NormalizeURL].
func IsTrackingParam(key string) bool {
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// NormalizeURL canonicalizes raw into a comparison key for deduplication.
//
// Tracking parameters are removed, the remaining parameters are sorted by key, the fragment and a leading
// "www." are dropped, the host is lowercased, the scheme is forced to https, and a single trailing slash is
// removed from both the input and the result.
//
// NormalizeURL always returns a usable key: when raw is not an absolute URL the input is returned unchanged
// together with an error wrapping [ErrInvalidURL], which callers should treat as a warning.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return raw, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return raw, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, raw)
	}

	query := filterQuery(u.RawQuery)

	u.Scheme = "https"
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if port := u.Port(); port == "443" || port == "80" {
		host := u.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	}
	u.RawQuery = query
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	return strings.TrimSuffix(u.String(), "/"), nil
}

// filterQuery drops tracking pairs from a raw query and stably sorts the rest by key.
// Pairs are kept verbatim, so separators and escapes that [url.ParseQuery] rejects survive.
func filterQuery(raw string) string {
	type pair struct{ key, text string }

	var pairs []pair
	for _, text := range strings.Split(raw, "&") {
		if text == "" {
			continue
		}
		key, _, _ := strings.Cut(text, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if IsTrackingParam(key) {
			continue
		}
		pairs = append(pairs, pair{key: key, text: text})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	kept := make([]string, len(pairs))
	for i, p := range pairs {
		kept[i] = p.text
	}
	return strings.Join(kept, "&")
}
