package matching

import (
	"lake-loader/internal/domain"
)

// Match resolves n against the sources in snap. The first source for the
// notification's bucket is authoritative; later sources for the same bucket
// are never consulted. A notification that does not belong to that source
// yields a *domain.NoMatchError describing the failed step.
func Match(n domain.Notification, snap *domain.Snapshot) (*domain.MatchedObject, error) {
	noMatch := func(reason domain.NoMatchReason) error {
		return &domain.NoMatchError{Reason: reason, Bucket: n.Bucket, Key: n.Key}
	}

	src, ok := snap.ForBucket(n.Bucket)
	if !ok {
		return nil, noMatch(domain.NoMatchBucket)
	}
	if src.Prefix != nil && !src.Prefix.MatchString(n.Key) {
		return nil, noMatch(domain.NoMatchPrefix)
	}

	matched := &domain.MatchedObject{
		Source:       src,
		Bucket:       n.Bucket,
		Key:          n.Key,
		TablePath:    src.TablePath,
		Notification: n,
	}
	if len(src.Partitions) == 0 {
		return matched, nil
	}

	parts := ExtractPartitions(n.Key)
	if len(parts) != len(src.Partitions) {
		return nil, noMatch(domain.NoMatchPartitionCount)
	}
	for i, name := range src.Partitions {
		if parts[i].Name != name {
			return nil, noMatch(domain.NoMatchPartitionName)
		}
	}
	matched.Partitions = parts
	return matched, nil
}
