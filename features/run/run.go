package run

import "time"

type Kind string

const (
	KindFeed   Kind = "feed"
	KindSite   Kind = "site"
	KindCrawl  Kind = "crawl"
	KindLoad   Kind = "load"
	KindDelete Kind = "delete"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	// StatusEmpty marks a run that found no documents.
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Run is one ingestion run as recorded in the ledger and announced on the bus.
type Run struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Site       string    `json:"site"`
	Source     string    `json:"source"`
	Found      int       `json:"found"`
	Indexed    int       `json:"indexed"`
	Skipped    int       `json:"skipped"`
	Deleted    int64     `json:"deleted"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
