package domain

import "time"

// TableVersion identifies a committed table state. Version 0 is the empty
// table; every commit produces the next integer.
type TableVersion int64

// TableState is what a writer reads before attempting a commit.
type TableState struct {
	Version    TableVersion
	DedupeKeys map[string]struct{}
	Schema     Schema
}

// HasDedupeKey reports whether an object with this identity is already committed.
func (s *TableState) HasDedupeKey(key string) bool {
	_, ok := s.DedupeKeys[key]
	return ok
}

// ArtifactRef points at an immutable data file written for a commit.
type ArtifactRef struct {
	Path      string `json:"path"`
	RowCount  int64  `json:"row_count"`
	SizeBytes int64  `json:"size_bytes"`
}

// CommitRequest is a conditional append: it succeeds only if the table is
// still at Expected.
type CommitRequest struct {
	Expected   TableVersion
	Artifact   ArtifactRef
	Partitions []Partition
	DedupeKey  string
	// Schema is the table schema after this commit.
	Schema Schema
}

// Commit is one entry of a table's transaction log.
type Commit struct {
	Version     TableVersion `json:"version"`
	Artifact    ArtifactRef  `json:"artifact"`
	Partitions  []Partition  `json:"partitions"`
	DedupeKey   string       `json:"dedupe_key"`
	Schema      Schema       `json:"schema"`
	CommittedAt time.Time    `json:"committed_at"`
}
