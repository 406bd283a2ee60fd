package repositorycache

import (
	"net/url"

	"github.com/goliatone/go-donation-cache/cache"
)

// Key segments used under every tag.
const (
	segmentList     = "list"
	segmentCount    = "count"
	segmentObject   = "object"
	segmentRetrieve = "retrieve"
	segmentQueryset = "queryset"
)

// ListKey addresses one page of a filtered listing: {tag}_list_{hash}. The
// hash covers the normalized query parameters so reordered parameters share
// an entry.
func ListKey(tag cache.Tag, params url.Values) cache.Key {
	return tag.Key(segmentList, cache.HashParams(params))
}

// ListPrefix covers every cached listing of tag.
func ListPrefix(tag cache.Tag) cache.Prefix {
	return tag.Prefix(segmentList)
}

// CountKey addresses a cached count for a parameter set.
func CountKey(tag cache.Tag, params url.Values) cache.Key {
	return tag.Key(segmentCount, cache.HashParams(params))
}

// ObjectKey addresses the entity loaded for a write path: {tag}_object_{lookup}.
func ObjectKey(tag cache.Tag, lookup string) cache.Key {
	return tag.Key(segmentObject, lookup)
}

// RetrieveKey addresses the entity loaded for a detail view:
// {tag}_retrieve_{lookup}.
func RetrieveKey(tag cache.Tag, lookup string) cache.Key {
	return tag.Key(segmentRetrieve, lookup)
}

// QuerysetKey addresses an unfiltered result set, optionally narrowed to a
// scope such as a user id: {tag}_queryset[_{scope}].
func QuerysetKey(tag cache.Tag, scope ...string) cache.Key {
	return tag.Key(append([]string{segmentQueryset}, scope...)...)
}

// LookupKeys returns the object and retrieve keys of one lookup.
func LookupKeys(tag cache.Tag, lookup string) []cache.Key {
	return []cache.Key{ObjectKey(tag, lookup), RetrieveKey(tag, lookup)}
}
