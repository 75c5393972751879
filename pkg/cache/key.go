package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyNamespace prefixes every key the console writes to Redis.
const keyNamespace = "users"

// Key identifies a cached user API response.
type Key struct {
	// Endpoint is the API path, e.g. "/api/users".
	Endpoint string

	// Query holds the request's query parameters. Empty values are kept:
	// "name=" and no name parameter are different requests.
	Query url.Values
}

// String generates a deterministic key.
// Format: users:endpoint:k1=v1:k2=v2 with query keys sorted. Names and values
// are query-escaped so free-text filters cannot forge a separator.
//
// Example:
//
//	users:api/users:age=:city=Tehran:job=:name=:page=1:per_page=5
func (k Key) String() string {
	parts := []string{k.Prefix()}

	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(k.Query.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

// Prefix returns the part of the key shared by every query against the same
// endpoint.
func (k Key) Prefix() string {
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint == "" {
		return keyNamespace
	}
	return keyNamespace + ":" + endpoint
}
