// Package extract turns raw source units (feed payloads, RSS items, HTML pages)
// into normalized records. Extraction never fails past its own boundary: a unit
// that cannot be parsed yields no records and a logged diagnostic.
package extract

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrParse marks malformed XML, HTML or JSON in a single source unit.
var ErrParse = errors.New("parse error")

// Fragment is one structured-data object (typically a JSON-LD node). Values are
// kept as raw JSON; only allow-listed keys are ever interpreted downstream.
type Fragment map[string]json.RawMessage

// Record is the normalized output of extraction.
type Record struct {
	Title       string
	Link        string
	Body        string
	Description string
	Published   string
	PublishedAt *time.Time
	// StructuredData preserves document order.
	StructuredData []Fragment
}
