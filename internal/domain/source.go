package domain

import "regexp"

// SourceConfig maps an object-store layout onto a logical table.
// Instances are immutable once loaded and shared read-only.
type SourceConfig struct {
	Bucket     string
	Prefix     *regexp.Regexp
	Partitions []string
	TablePath  string
}

// Partition is one name=value path segment.
type Partition struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MatchedObject is a notification that belongs to a configured table.
type MatchedObject struct {
	Source       *SourceConfig
	Bucket       string
	Key          string
	Partitions   []Partition
	TablePath    string
	Notification Notification
}

// PartitionValues returns the partitions as a name → value map.
// When a name repeats, the rightmost value wins.
func PartitionValues(parts []Partition) map[string]string {
	out := make(map[string]string, len(parts))
	for _, p := range parts {
		out[p.Name] = p.Value
	}
	return out
}

// Snapshot is an ordered, immutable set of sources. A pipeline pass reads
// one snapshot and never observes a reload midway.
type Snapshot struct {
	Sources []*SourceConfig
}

// NewSnapshot builds a snapshot over sources, preserving their order.
func NewSnapshot(sources ...*SourceConfig) *Snapshot {
	s := make([]*SourceConfig, len(sources))
	copy(s, sources)
	return &Snapshot{Sources: s}
}

// ForBucket returns the first source configured for bucket.
func (s *Snapshot) ForBucket(bucket string) (*SourceConfig, bool) {
	if s == nil {
		return nil, false
	}
	for _, src := range s.Sources {
		if src.Bucket == bucket {
			return src, true
		}
	}
	return nil, false
}
