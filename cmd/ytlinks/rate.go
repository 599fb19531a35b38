package main

import (
	"fmt"
	"strings"
)

// parseRate parses strings like "2MiB/s", "500KiB/s" into bytes per second.
func parseRate(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "/S"))
	mul := int64(1)
	for _, u := range []struct {
		suffix string
		mul    int64
	}{
		{"KIB", 1 << 10}, {"MIB", 1 << 20}, {"GIB", 1 << 30},
		{"KB", 1000}, {"MB", 1000 * 1000}, {"GB", 1000 * 1000 * 1000},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSuffix(s, u.suffix)
			mul = u.mul
			break
		}
	}
	var val float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &val); err != nil || val <= 0 {
		return 0
	}
	return int64(val * float64(mul))
}
