package hit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// idLength is the number of hex characters kept from the SHA-256 digest.
const idLength = 32

// trackingParams lists query parameters stripped during canonicalisation.
// These are advertising and analytics trackers that do not affect content.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"igshid":  {},
	"ref":     {},
	"ref_src": {},
}

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errMissingSchemeOrHost = errors.New("missing scheme or host")
	errUnsupportedScheme   = errors.New("scheme must be http or https")
)

// CanonicalURL rewrites rawURL so that equivalent URLs produce identical
// strings: scheme and host are lower-cased, http becomes https, "www." and
// default ports are dropped, dot-segments are resolved, trailing slashes
// and fragments removed, and tracking parameters stripped with the rest
// sorted.
func CanonicalURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}

	originalScheme := strings.ToLower(parsed.Scheme)
	if originalScheme != "http" && originalScheme != "https" {
		return "", errUnsupportedScheme
	}

	parsed.Scheme = "https"
	parsed.Host = normaliseHost(parsed, originalScheme)
	if parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}
	parsed.User = nil
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.RawQuery = buildCleanQuery(parsed.Query())
	parsed.Path = normalisePath(parsed.Path)
	parsed.RawPath = ""

	return parsed.String(), nil
}

// ItemID derives an item id from a canonical URL.
func ItemID(canonicalURL string) string {
	return hashID(canonicalURL)
}

// ContentID derives an item id for a hit without a URL.
// The "c" prefix keeps content ids apart from URL ids.
func ContentID(title, content string) string {
	return "c" + hashID(title + "\n" + content)[:idLength-1]
}

func hashID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:idLength]
}

// normaliseHost lowercases the hostname, drops "www." and removes default
// ports for either the original or the upgraded scheme.
func normaliseHost(u *url.URL, originalScheme string) string {
	hostname := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	hostname = strings.TrimPrefix(hostname, "www.")
	port := u.Port()

	if port == "" {
		return hostname
	}
	for _, scheme := range []string{originalScheme, u.Scheme} {
		if defaultPort, ok := defaultPorts[scheme]; ok && port == defaultPort {
			return hostname
		}
	}
	return hostname + ":" + port
}

// buildCleanQuery strips tracking parameters, sorts the remaining keys
// and returns the encoded query, or "" when nothing remains.
func buildCleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if isTrackingParam(key) {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		vals := append([]string(nil), values[key]...)
		sort.Strings(vals)
		for _, val := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// normalisePath resolves dot-segments and removes trailing slashes.
// The root path becomes empty.
func normalisePath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	cleaned := path.Clean(p)
	return strings.TrimRight(cleaned, "/")
}

// InferPlatform maps a canonical host to the hosting platform.
func InferPlatform(host string) domain.Platform {
	switch {
	case hostIs(host, "github.com"):
		return domain.PlatformGitHub
	case hostIs(host, "arxiv.org"):
		return domain.PlatformArxiv
	default:
		return domain.PlatformWeb
	}
}

// inferType picks the default item type for a host.
func inferType(host string, platform domain.Platform) domain.ItemType {
	switch {
	case platform == domain.PlatformArxiv:
		return domain.ItemTypePaper
	case platform == domain.PlatformGitHub:
		return domain.ItemTypeTool
	case hostIs(host, "huggingface.co"):
		return domain.ItemTypeModel
	default:
		return domain.ItemTypeArticle
	}
}

func hostIs(host, domainName string) bool {
	host = strings.Split(host, ":")[0]
	return host == domainName || strings.HasSuffix(host, "."+domainName)
}

// titleFromURL derives a readable title from the last meaningful path
// segment, falling back to the host.
func titleFromURL(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg, err := url.PathUnescape(segments[i])
		if err != nil {
			seg = segments[i]
		}
		if ext := path.Ext(seg); ext != "" && len(ext) <= 5 {
			seg = strings.TrimSuffix(seg, ext)
		}
		seg = strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(seg)
		seg = strings.Join(strings.Fields(seg), " ")
		if seg != "" && !isIndexSegment(seg) {
			return seg
		}
	}
	return u.Hostname()
}

func isIndexSegment(seg string) bool {
	switch strings.ToLower(seg) {
	case "index", "default", "home":
		return true
	}
	return false
}

// repositoryRoot returns https://github.com/owner/repo for GitHub URLs
// that point at or inside a repository.
func repositoryRoot(u *url.URL) string {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	switch parts[0] {
	case "orgs", "topics", "search", "features", "marketplace", "collections", "trending", "sponsors":
		return ""
	}
	return "https://github.com/" + parts[0] + "/" + strings.TrimSuffix(parts[1], ".git")
}
