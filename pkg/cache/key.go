package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "placemark:cache"

// CacheKey represents a unique identifier for a cached API response.
type CacheKey struct {
	// Endpoint is the API path (e.g. "/folders/12/places")
	Endpoint string

	// QueryParams are the query parameters. Repeated parameters such as
	// categoryList keep all of their values.
	QueryParams url.Values

	// Principal scopes the entry to one credential (see Fingerprint); empty for anonymous
	Principal string
}

// String generates a deterministic cache key string.
// Format: placemark:cache:endpoint:query1=a,b:query2=c:p=principal
//
// Example:
//
//	placemark:cache:places:categoryList=bar,cafe:take=10:p=9f86d081884c7d65
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	if k.Principal != "" {
		parts = append(parts, "p="+k.Principal)
	}

	return strings.Join(parts, ":")
}

// Fingerprint derives a short, non-reversible principal from a bearer token.
// It returns "" for an empty token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
