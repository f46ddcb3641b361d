package catalog

import (
	"fmt"
	"strings"

	"github.com/clbanning/mxj/v2"
)

const (
	attrPrefix = "-"
	textKey    = "#text"
)

// AsList normalizes an element that BGG may return as a lone value or as a
// list into a list. nil becomes an empty list.
func AsList(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	default:
		return []interface{}{t}
	}
}

// Maps returns the map-shaped entries of v after AsList.
func Maps(v interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, entry := range AsList(v) {
		if m, ok := entry.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// Head returns the first entry of v after AsList, whatever its shape.
func Head(v interface{}) interface{} {
	list := AsList(v)
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// First returns the first map-shaped entry of v, or nil.
func First(v interface{}) map[string]interface{} {
	maps := Maps(v)
	if len(maps) == 0 {
		return nil
	}
	return maps[0]
}

// Attr reads attribute name from an element map.
func Attr(m map[string]interface{}, name string) string {
	if m == nil {
		return ""
	}
	return scalar(m[attrPrefix+name])
}

// Text reads the character data of an element that may be a bare string
// or a map carrying attributes.
func Text(v interface{}) string {
	switch t := v.(type) {
	case map[string]interface{}:
		return scalar(t[textKey])
	default:
		return scalar(t)
	}
}

// Value reads the "value" attribute of child key, BGG's wrapping for
// scalar fields like <minplayers value="2"/>. Absent fields yield "".
func Value(m map[string]interface{}, key string) string {
	return Attr(First(m[key]), "value")
}

// Path walks nested single elements, e.g. Path(item, "statistics", "ratings").
func Path(m map[string]interface{}, keys ...string) map[string]interface{} {
	cur := m
	for _, k := range keys {
		if cur == nil {
			return nil
		}
		cur = First(cur[k])
	}
	return cur
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		if len(t) == 0 {
			return ""
		}
		return scalar(t[0])
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// decodeXML turns a response body into nested maps keyed by the root
// element name.
func decodeXML(body []byte) (map[string]interface{}, error) {
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, fmt.Errorf("decoding xml: %w", err)
	}
	return map[string]interface{}(m), nil
}
