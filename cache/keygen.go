package cache

import (
	"sort"
	"strings"
)

// Suffixes of the side entries kept next to a resource's main entry
const (
	LastModifiedSuffix = ".last_modified"
	ProcessedSuffix    = ".processed"
)

// KeyFor builds a stable cache key from an endpoint path and query params
func KeyFor(path string, params map[string]string) string {
	key := "/" + strings.Trim(path, "/")

	if len(params) == 0 {
		return key
	}

	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return key + "?" + strings.Join(parts, "&")
}

// LastModifiedKey is the key of the revalidation token for key
func LastModifiedKey(key string) string {
	return key + LastModifiedSuffix
}

// ProcessedKey is the key of the processed result for key
func ProcessedKey(key string) string {
	return key + ProcessedSuffix
}
