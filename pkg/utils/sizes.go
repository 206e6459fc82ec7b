package utils

import "github.com/docker/go-units"

// HumanSize renders a byte count for log lines, e.g. "10.5MB".
func HumanSize(n int64) string {
	return units.HumanSizeWithPrecision(float64(n), 3)
}
