package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySerializer builds a stable key under a tag from arbitrary parts.
type KeySerializer interface {
	SerializeKey(tag Tag, parts ...any) Key
}

// defaultKeySerializer stringifies parts with reflection so that maps and
// slices produce the same segment regardless of iteration order.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

func (s defaultKeySerializer) SerializeKey(tag Tag, parts ...any) Key {
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		segments = append(segments, s.serializeValue(p))
	}
	return tag.Key(segments...)
}

func (s defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	if str, ok := v.(fmt.Stringer); ok {
		return str.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}
		parts := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts[i] = s.serializeValue(rv.Index(i).Interface())
		}
		return "[" + strings.Join(parts, ",") + "]"
	case reflect.Map:
		return s.serializeMap(rv)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "type:" + rv.Type().String()
	}
	return string(data)
}

// serializeMap renders entries sorted by key.
func (s defaultKeySerializer) serializeMap(rv reflect.Value) string {
	if rv.IsNil() {
		return "{}"
	}
	type pair struct{ k, v string }
	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			k: s.serializeValue(iter.Key().Interface()),
			v: s.serializeValue(iter.Value().Interface()),
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// NormalizeParams renders query parameters in a canonical form: names sorted,
// values of each name sorted, empty names dropped. Two requests that differ
// only in parameter order normalize to the same string.
func NormalizeParams(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, 0, len(params))
	for name := range params {
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	normalized := make(url.Values, len(names))
	for _, name := range names {
		values := append([]string(nil), params[name]...)
		sort.Strings(values)
		normalized[name] = values
	}
	// url.Values.Encode sorts by name as well.
	return normalized.Encode()
}

// HashParams returns a short, stable discriminator for a parameter set.
func HashParams(params url.Values) string {
	normalized := NormalizeParams(params)
	if normalized == "" {
		return "all"
	}
	return strconv.FormatUint(xxhash.Sum64String(normalized), 16)
}
