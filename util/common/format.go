package common

import (
	"fmt"
)

// FormatSize renders a byte count with a binary unit, e.g. "1.50KB".
func FormatSize(size int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	unitIndex := 0
	s := float64(size)

	for s >= 1024 && unitIndex < len(units)-1 {
		s /= 1024
		unitIndex++
	}
	return fmt.Sprintf("%.2f%s", s, units[unitIndex])
}
