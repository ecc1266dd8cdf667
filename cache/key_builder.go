package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// maxKeyLength bounds generated keys so they stay under store-specific
// key-size limits. Longer serializations are truncated and suffixed with
// a content hash to preserve uniqueness.
const maxKeyLength = 200

// KeyBuilder derives cache keys from operation names and parameters.
// Keys are deterministic: two semantically equal parameter sets produce
// the same key regardless of map ordering, slice ordering, or explicitly
// nil fields.
type KeyBuilder interface {
	// ListKey builds a key for a filtered listing: "<op>:<sorted-params>".
	ListKey(op string, params map[string]any) string
	// EntityKey builds a key for a single-entity lookup: "<op>:<id>".
	EntityKey(op string, id string) string
}

// defaultKeyBuilder serializes parameters with deterministic, sorted
// output and falls back to JSON for complex values. It never fails:
// a caching layer must not be the reason a request fails, so malformed
// values degrade to a best-effort stable representation.
type defaultKeyBuilder struct{}

// NewKeyBuilder creates the default key builder.
func NewKeyBuilder() KeyBuilder {
	return &defaultKeyBuilder{}
}

func (b *defaultKeyBuilder) ListKey(op string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name, value := range params {
		if isAbsent(value) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+b.serializeValue(params[name]))
	}

	return boundKey(sanitizeSegment(op) + ":" + strings.Join(parts, "&"))
}

func (b *defaultKeyBuilder) EntityKey(op string, id string) string {
	return boundKey(sanitizeSegment(op) + ":" + sanitizeSegment(id))
}

// serializeValue renders a single parameter value deterministically.
// Slices are serialized element-wise and sorted so [a,b] and [b,a]
// produce the same key.
func (b *defaultKeyBuilder) serializeValue(v any) string {
	if v == nil {
		return ""
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	switch rt.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return ""
		}
		return b.serializeValue(rv.Elem().Interface())

	case reflect.Slice, reflect.Array:
		elems := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elems = append(elems, b.serializeValue(rv.Index(i).Interface()))
		}
		sort.Strings(elems)
		return strings.Join(elems, ",")

	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]string, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := b.serializeValue(iter.Key().Interface())
			keys = append(keys, k)
			byKey[k] = b.serializeValue(iter.Value().Interface())
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+byKey[k])
		}
		return "{" + strings.Join(pairs, ",") + "}"

	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return sanitizeSegment(fmt.Sprintf("%v", v))

	default:
		return b.jsonFallback(v)
	}
}

// jsonFallback provides a stable best-effort representation for values
// the switch above does not handle.
func (b *defaultKeyBuilder) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return sanitizeSegment(fmt.Sprintf("%T:%v", v, v))
	}
	return sanitizeSegment(string(data))
}

// isAbsent reports whether a parameter value should be treated the same
// as an omitted field: nil interfaces, nil pointers, and empty slices.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.IsNil() || rv.Len() == 0
	case reflect.String:
		return rv.Len() == 0
	}
	return false
}

// sanitizeSegment strips characters that would corrupt the key namespace:
// control characters, whitespace, and the ':' separator inside segments.
// Prefix-based invalidation depends on ':' appearing only as the
// namespace delimiter.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r <= 0x20 || r == 0x7f:
			b.WriteByte('_')
		case r == ':':
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// boundKey enforces maxKeyLength, replacing the tail of oversized keys
// with an xxhash digest of the full serialization.
func boundKey(key string) string {
	if len(key) <= maxKeyLength {
		return key
	}
	digest := fmt.Sprintf("%016x", xxhash.Sum64String(key))
	return key[:maxKeyLength-len(digest)-1] + "#" + digest
}
