package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Query parameters that carry tracking state rather than identity.
var trackingParams = map[string]struct{}{
	"utm":          {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"trk":          {},
	"trackingid":   {},
	"refid":        {},
	"ref":          {},
	"mkt_tok":      {},
	"currentjobid": {},
}

// CanonicalizeLink standardizes a job URL so the same posting always maps
// to the same identity. It lowercases the scheme and host, removes default
// ports, drops the fragment, strips tracking query parameters, and sorts
// what remains.
func CanonicalizeLink(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, tracked := trackingParams[lower]; tracked || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// recordIDLength matches the original store schema: sixteen hex characters
// of the link digest.
const recordIDLength = 16

// RecordID derives the stable record identity from a canonical link.
func RecordID(canonicalLink string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(canonicalLink)))
	return hex.EncodeToString(sum[:])[:recordIDLength]
}
