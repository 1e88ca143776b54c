package upstream

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Params are query parameters for a list endpoint. Values may be strings,
// string slices, numbers, bools, times or pointers to those.
type Params map[string]any

// BuildQuery encodes params, dropping nil, empty and "all" values. Slices
// become repeated keys rather than a comma-joined value.
func BuildQuery(params Params) url.Values {
	values := url.Values{}
	for key, raw := range params {
		switch v := raw.(type) {
		case []string:
			for _, item := range v {
				if keep(item) {
					values.Add(key, item)
				}
			}
		case []int:
			for _, item := range v {
				values.Add(key, strconv.Itoa(item))
			}
		default:
			if s, ok := scalar(raw); ok && keep(s) {
				values.Set(key, s)
			}
		}
	}
	return values
}

func keep(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, "all")
}

func scalar(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case int:
		return strconv.Itoa(v), true
	case *int:
		if v == nil {
			return "", false
		}
		return strconv.Itoa(*v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case *float64:
		if v == nil {
			return "", false
		}
		return strconv.FormatFloat(*v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		if v.IsZero() {
			return "", false
		}
		return v.UTC().Format(time.RFC3339), true
	case fmt.Stringer:
		return v.String(), true
	}
	return fmt.Sprint(raw), true
}
