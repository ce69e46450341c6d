package domain

import "time"

// FeedItem is one entry of a fetched feed. Selection compares PublishedAt only.
type FeedItem struct {
	Title        string
	Description  string
	Link         string
	PublishedAt  time.Time
	PublishedRaw string
}

// RejectedItem is a feed entry whose publication timestamp could not be parsed.
type RejectedItem struct {
	Title string
	Link  string
	Err   error
}

// FeedSnapshot is one fetched and parsed copy of the remote feed.
// Items keep the order of the source document, which is newest-first.
type FeedSnapshot struct {
	BuildTimestamp time.Time
	Items          []FeedItem
	Rejected       []RejectedItem
}

// Lease is the run-exclusion record stored under the application key.
type Lease struct {
	Key        string
	Holder     string
	AcquiredAt time.Time
}

// Age reports how long ago the lease was taken, relative to now.
func (l Lease) Age(now time.Time) time.Duration {
	return now.Sub(l.AcquiredAt)
}

type LeaseStatus int

const (
	LeaseAcquired LeaseStatus = iota
	LeaseHeld
)

func (s LeaseStatus) String() string {
	if s == LeaseHeld {
		return "held"
	}
	return "acquired"
}

// RunOutcome says which branch of the synchronizer a run took.
type RunOutcome string

const (
	OutcomeLeaseHeld    RunOutcome = "lease_held"
	OutcomeBootstrapped RunOutcome = "bootstrapped"
	OutcomeUnchanged    RunOutcome = "unchanged"
	OutcomeAdvanced     RunOutcome = "advanced"
)

// FailedItem pairs an item with the error its publish attempt returned.
type FailedItem struct {
	Item FeedItem
	Err  error
}

// RunResult describes what one synchronizer run did.
type RunResult struct {
	RunID     string
	Outcome   RunOutcome
	Previous  *time.Time
	Watermark *time.Time
	Published []FeedItem
	Failed    []FailedItem
	Skipped   []RejectedItem
	StartedAt time.Time
	Duration  time.Duration
}

// MalformedItemPolicy decides what a run does with items whose publication
// timestamp cannot be parsed.
type MalformedItemPolicy string

const (
	// MalformedFail aborts the run with a DateParseError.
	MalformedFail MalformedItemPolicy = "fail"
	// MalformedSkip drops the item and reports it in RunResult.Skipped.
	MalformedSkip MalformedItemPolicy = "skip"
)

func (p MalformedItemPolicy) Valid() bool {
	return p == MalformedFail || p == MalformedSkip
}
