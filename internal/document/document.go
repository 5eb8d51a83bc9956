// Package document defines the unit persisted to the vector index and the
// builders that produce it from extracted records.
package document

import (
	"encoding/json"
)

const (
	DefaultType     = "WebPage"
	PlaceholderType = "DigitalDocument"
)

// MergeKeys is the allow-list of structured-data keys copied onto a document.
// For each key the first fragment that carries it wins.
var MergeKeys = []string{"@type", "mainEntity", "offers", "publisher"}

// Document is one indexable unit. URL travels outside the JSON body in the
// interchange file.
type Document struct {
	URL         string                     `json:"-"`
	Name        string                     `json:"name"`
	Site        string                     `json:"site"`
	Text        string                     `json:"text"`
	Description string                     `json:"description,omitempty"`
	TypeTag     string                     `json:"@type"`
	Fields      map[string]json.RawMessage `json:"fields,omitempty"`
	SchemaJSON  string                     `json:"schema_json"`
}

// Placeholder describes a resource that cannot be extracted directly, such
// as a PDF, together with the metadata to index in its place.
type Placeholder struct {
	URL         string `yaml:"url"`
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// TypeResolver maps an exact URL to a configured @type.
type TypeResolver interface {
	TypeFor(url string) (string, bool)
}

type noOverrides struct{}

func (noOverrides) TypeFor(string) (string, bool) { return "", false }

// feedSchema keeps the key order of the serialized feed schema stable.
type feedSchema struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Published string `json:"published"`
	Link      string `json:"link"`
}

type pageSchema struct {
	Type        string          `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url"`
	MainEntity  json.RawMessage `json:"mainEntity,omitempty"`
	Offers      json.RawMessage `json:"offers,omitempty"`
	Publisher   json.RawMessage `json:"publisher,omitempty"`
}

func (d Document) pageSchema() string {
	s := pageSchema{
		Type:        d.TypeTag,
		Name:        d.Name,
		Description: d.Description,
		URL:         d.URL,
		MainEntity:  d.Fields["mainEntity"],
		Offers:      d.Fields["offers"],
		Publisher:   d.Fields["publisher"],
	}
	return marshalSchema(s)
}

func marshalSchema(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
