package cliflags

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Map is a repeatable key=value flag, e.g. --log-field suite=smoke --log-field run=42.
type Map map[string]string

func (m *Map) String() string {
	if m == nil || len(*m) == 0 {
		return ""
	}

	entries := make([]string, 0, len(*m))
	for _, k := range slices.Sorted(maps.Keys(*m)) {
		entries = append(entries, k+"="+(*m)[k])
	}

	return strings.Join(entries, ",")
}

func (m *Map) Set(s string) error {
	const sliceCount = 2

	parts := strings.SplitN(s, "=", sliceCount)
	if len(parts) != sliceCount {
		return fmt.Errorf("invalid format %q, expected key=value", s)
	}

	key := parts[0]
	val := parts[1]

	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty key in %q", s)
	}

	if *m == nil {
		*m = make(map[string]string)
	}

	(*m)[strings.TrimSpace(key)] = strings.TrimSpace(val)

	return nil
}

// Type implements pflag.Value.
func (m *Map) Type() string {
	return "key=value"
}
