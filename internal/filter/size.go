package filter

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeSuffixes = map[byte]int64{
	'B': 1,
	'K': 1 << 10,
	'M': 1 << 20,
	'G': 1 << 30,
	'T': 1 << 40,
}

// ParseSize parses "100", "100K", "1.5M", "2G" (case-insensitive, powers of
// 1024, an optional trailing "B" after a unit is accepted: "100MB").
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	num := s
	multiplier := int64(1)
	if len(num) > 1 && num[len(num)-1] == 'B' {
		if _, ok := sizeSuffixes[num[len(num)-2]]; ok {
			num = num[:len(num)-1]
		}
	}
	if m, ok := sizeSuffixes[num[len(num)-1]]; ok {
		multiplier = m
		num = num[:len(num)-1]
	}
	if num == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	if n, err := strconv.ParseInt(num, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative size: %q", s)
		}
		return n * multiplier, nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return int64(f * float64(multiplier)), nil
}
