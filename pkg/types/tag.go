package types

import "time"

// TagKind distinguishes which item type a tag is attached to (spec §3 Tag).
type TagKind string

const (
	TagKindFiles TagKind = "Files"
	TagKindRepos TagKind = "Repos"
)

// Tag is one (kind, group, key, value, item) row, partitioned by
// (kind, group, year, bucket, key, value) and clustered by
// (timestamp DESC, item) per spec §3. Insertion is idempotent under
// that primary key.
type Tag struct {
	Kind      TagKind
	Group     string
	Key       string
	Value     string
	Item      string // sha256 or repo URL
	Timestamp time.Time
	Year      int
	Bucket    int
}

// Bucket computes the time-derived secondary key that keeps partitions
// bounded (spec GLOSSARY "Bucket / partition"). bucketSize is supplied
// by the caller's partition configuration, never hard-coded (spec §9).
func BucketFor(t time.Time, bucketSize time.Duration) (year int, bucket int) {
	year = t.Year()
	startOfYear := time.Date(year, 1, 1, 0, 0, 0, 0, t.Location())
	bucket = int(t.Sub(startOfYear) / bucketSize)
	return
}
