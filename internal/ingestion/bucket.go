package ingestion

import "time"

// DefaultBucket is the snapshot alignment quantum. All history rows
// written during a tick carry the tick time rounded down to this
// boundary so that series collected by skewed clocks or overlapping
// ticks stay comparable across pairs.
const DefaultBucket = 15 * time.Minute

// BucketTime rounds t down to the nearest bucket boundary in UTC.
func BucketTime(t time.Time, bucket time.Duration) time.Time {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	return t.UTC().Truncate(bucket)
}
