// Package matching decides which configured table a stored object belongs to.
package matching

import (
	"strings"

	"lake-loader/internal/domain"
)

// ExtractPartitions returns the name=value segments of key in path order.
// A segment is a partition only when it contains exactly one '='; empty
// names or values are kept as-is.
func ExtractPartitions(key string) []domain.Partition {
	var parts []domain.Partition
	for _, seg := range strings.Split(key, "/") {
		name, value, ok := strings.Cut(seg, "=")
		if !ok || strings.Contains(value, "=") {
			continue
		}
		parts = append(parts, domain.Partition{Name: name, Value: value})
	}
	return parts
}
