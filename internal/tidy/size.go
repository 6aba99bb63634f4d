package tidy

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

const (
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
	tib = gib * 1024
)

// FormatSize renders a byte count as "512B", "1.5KB", "1.5MB", "2.0GB" or "1.1TB".
// Units are binary.
func FormatSize(size int64) string {
	abs := size
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= tib:
		return fmt.Sprintf("%.1fTB", float64(size)/tib)
	case abs >= gib:
		return fmt.Sprintf("%.1fGB", float64(size)/gib)
	case abs >= mib:
		return fmt.Sprintf("%.1fMB", float64(size)/mib)
	case abs >= kib:
		return fmt.Sprintf("%.1fKB", float64(size)/kib)
	default:
		return fmt.Sprintf("%dB", size)
	}
}

// ParseSize parses a human size such as "100MB", "1.5 gb", "512k" or "2048".
// KB, MB, GB and TB are read as binary units so that a parsed value agrees
// with FormatSize.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative size: %s", s)
		}
		return n, nil
	}

	idx := strings.LastIndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	num, unit := s[:idx+1], strings.ToLower(s[idx+1:])
	switch unit {
	case "k", "kb":
		unit = "KiB"
	case "m", "mb":
		unit = "MiB"
	case "g", "gb":
		unit = "GiB"
	case "t", "tb":
		unit = "TiB"
	}

	n, err := humanize.ParseBytes(strings.TrimSpace(num) + " " + unit)
	if err != nil {
		return 0, fmt.Errorf("parsing size %q: %w", s, err)
	}
	return int64(n), nil
}
