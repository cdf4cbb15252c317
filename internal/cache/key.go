package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Params are the filter parameters a derivation depends on.
type Params map[string]any

// Key builds a stable cache key for namespace and params. Parameter names
// are sorted, slices are sorted and comma-joined, times collapse to their
// UTC calendar date and nil values are omitted, so logically identical
// parameter sets always produce the same key.
func Key(namespace string, params Params) string {
	names := make([]string, 0, len(params))
	for name, v := range params {
		if isNil(v) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+formatValue(params[name]))
	}
	return namespace + ":" + strings.Join(pairs, "&")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.DateOnly)
	case *time.Time:
		if val == nil {
			return ""
		}
		return formatValue(*val)
	case fmt.Stringer:
		return val.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = formatValue(rv.Index(i).Interface())
		}
		sort.Strings(parts)
		return strings.Join(parts, ",")
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		return formatValue(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
