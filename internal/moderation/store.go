package moderation

import (
	"context"
	"time"
)

// Report is one accepted report record.
type Report struct {
	Reporter string
	Reported string
	Reason   string
	At       time.Time
}

// Store keeps the report ledger: one record per ordered (reporter, reported)
// identity pair inside a rolling window, discarded after the window passes.
// The ban set itself lives in the broker; the store only counts.
type Store interface {
	// Record files a report and returns the number of distinct reporters
	// currently on record for the reported identity, plus whether this
	// reporter already had one on file (duplicates are not re-recorded).
	Record(ctx context.Context, reporter, reported, reason string) (count int, duplicate bool, err error)
}
