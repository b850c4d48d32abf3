package board

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseHexColor converts "#RRGGBB" (hash optional) to a 24-bit color.
func ParseHexColor(hexColor string) (uint32, error) {
	trimmed := strings.TrimPrefix(hexColor, "#")
	if len(trimmed) != 6 {
		return 0, fmt.Errorf("malformed color %q, want RRGGBB", hexColor)
	}
	color, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed color %q: %w", hexColor, err)
	}
	return uint32(color), nil
}

// FormatHexColor renders a 24-bit color as "#rrggbb".
func FormatHexColor(color uint32) string {
	return fmt.Sprintf("#%06x", color&0xFFFFFF)
}
