package template

import (
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

// Resolve navigates root along a dotted path and returns the value found there.
//
// Path grammar:
//
//	a.b.c            nested keys
//	a\.b.c           literal dot inside a key ("a.b" then "c")
//	items[type=y].v  first element of items whose "type" stringifies to "y"
//	items[0]         element by index
//
// The boolean is false when any segment is missing. A present nil value
// resolves to (nil, true).
func Resolve(root any, path string) (any, bool) {
	switch root.(type) {
	case map[string]any, []any:
	default:
		return nil, false
	}
	if path == "" {
		return root, true
	}

	current := gabs.Wrap(root)
	for _, segment := range SplitPath(path) {
		key, field, want, kind := parseSegment(segment)

		next := current.Search(key)
		if next == nil {
			return nil, false
		}

		switch kind {
		case segmentQuery:
			next = findElement(next.Data(), field, want)
		case segmentIndex:
			next = elementAt(next.Data(), want)
		}
		if next == nil {
			return nil, false
		}
		current = next
	}

	return current.Data(), true
}

// SplitPath splits a path on unescaped dots and un-escapes each segment.
func SplitPath(path string) []string {
	var (
		segments []string
		b        strings.Builder
	)
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '\\' && i+1 < len(path) && path[i+1] == '.' {
			b.WriteByte('.')
			i++
			continue
		}
		if c == '.' {
			segments = append(segments, b.String())
			b.Reset()
			continue
		}
		b.WriteByte(c)
	}
	return append(segments, b.String())
}

type segmentKind int

const (
	segmentKey segmentKind = iota
	segmentQuery
	segmentIndex
)

// parseSegment splits "key[field=value]" and "key[3]" suffixes off a segment.
func parseSegment(segment string) (key, field, value string, kind segmentKind) {
	if !strings.HasSuffix(segment, "]") {
		return segment, "", "", segmentKey
	}
	open := strings.LastIndex(segment, "[")
	if open <= 0 {
		return segment, "", "", segmentKey
	}

	key = segment[:open]
	inner := segment[open+1 : len(segment)-1]
	if f, v, ok := strings.Cut(inner, "="); ok {
		return key, f, v, segmentQuery
	}
	if _, err := strconv.Atoi(inner); err == nil {
		return key, "", inner, segmentIndex
	}
	return segment, "", "", segmentKey
}

func findElement(data any, field, want string) *gabs.Container {
	items, ok := data.([]any)
	if !ok {
		return nil
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		got, ok := m[field]
		if !ok {
			continue
		}
		if Stringify(got) == want {
			return gabs.Wrap(item)
		}
	}
	return nil
}

func elementAt(data any, index string) *gabs.Container {
	items, ok := data.([]any)
	if !ok {
		return nil
	}
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(items) {
		return nil
	}
	return gabs.Wrap(items[i])
}
