package retrieval

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// loggedHits caps how many ranked results a query log line keeps.
const loggedHits = 3

// QueryLogEntry is one line of the query log: what was asked of which site,
// and where the best answers pointed.
type QueryLogEntry struct {
	Timestamp  time.Time   `json:"timestamp"`
	Query      string      `json:"query"`
	Site       string      `json:"site,omitempty"`
	Limit      int         `json:"limit"`
	NumResults int         `json:"num_results"`
	TopURL     string      `json:"top_url,omitempty"`
	TopHits    []LoggedHit `json:"top_hits,omitempty"`
	LatencyMs  int64       `json:"latency_ms"`
	RunID      string      `json:"run_id,omitempty"`
}

type LoggedHit struct {
	URL     string  `json:"url"`
	TypeTag string  `json:"@type,omitempty"`
	Score   float32 `json:"score"`
}

// NewQueryLogEntry summarises a finished search.
func NewQueryLogEntry(query string, site string, limit int, results []SearchResult, took time.Duration) QueryLogEntry {
	e := QueryLogEntry{
		Query:      query,
		Site:       site,
		Limit:      limit,
		NumResults: len(results),
		LatencyMs:  took.Milliseconds(),
	}
	for i, r := range results {
		if i == loggedHits {
			break
		}
		e.TopHits = append(e.TopHits, LoggedHit{URL: r.URL, TypeTag: r.TypeTag, Score: r.Score})
	}
	if len(e.TopHits) > 0 {
		e.TopURL = e.TopHits[0].URL
	}
	return e
}

// QueryLogger appends one JSON line per query.
type QueryLogger struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	return &QueryLogger{writer: w}
}

func NewFileQueryLogger(path string) (*QueryLogger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, nil, err
	}
	return NewQueryLogger(f), f, nil
}

func (l *QueryLogger) Log(entry QueryLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write query log entry", "site", entry.Site, "error", err)
	}
}
