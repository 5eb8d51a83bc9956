package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/kismet-tech/NLWeb/internal/extract"
)

var ErrInvalidDocument = errors.New("invalid document")

// nonHTMLExtensions are resources that are never parsed as HTML.
var nonHTMLExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".xls":  true,
	".xlsx": true,
}

// Builder turns extracted records into Documents for one site.
type Builder struct {
	site  string
	types TypeResolver
}

func NewBuilder(site string, types TypeResolver) *Builder {
	if types == nil {
		types = noOverrides{}
	}
	return &Builder{site: site, types: types}
}

func (b *Builder) Site() string { return b.site }

func composeText(name, body string) string {
	return name + "\n\n" + body
}

// FromFeedRecord builds the document for one feed entry.
func (b *Builder) FromFeedRecord(rec extract.Record) Document {
	doc := Document{
		URL:     rec.Link,
		Name:    rec.Title,
		Site:    b.site,
		Text:    composeText(rec.Title, rec.Body),
		TypeTag: DefaultType,
	}
	if t, ok := b.types.TypeFor(rec.Link); ok {
		doc.TypeTag = t
	}
	doc.SchemaJSON = marshalSchema(feedSchema{
		Title:     rec.Title,
		Summary:   rec.Body,
		Published: rec.Published,
		Link:      rec.Link,
	})
	return doc
}

// FromPage builds the document for one crawled HTML page. Type resolution
// order: configured override, first structured-data @type, DefaultType.
func (b *Builder) FromPage(pageURL string, rec extract.Record) Document {
	name := rec.Title
	if name == "" {
		name = "Page at " + pageURL
	}

	doc := Document{
		URL:         pageURL,
		Name:        name,
		Site:        b.site,
		Description: rec.Description,
		Text:        composeText(name, rec.Body),
	}
	if t, ok := b.types.TypeFor(pageURL); ok {
		doc.TypeTag = t
	}

	fields := map[string]json.RawMessage{}
	for _, frag := range rec.StructuredData {
		for _, key := range MergeKeys {
			v, ok := frag[key]
			if !ok {
				continue
			}
			if key == "@type" {
				if doc.TypeTag == "" {
					doc.TypeTag = extract.TypeName(v)
				}
				continue
			}
			if _, seen := fields[key]; !seen {
				fields[key] = v
			}
		}
	}
	if doc.TypeTag == "" {
		doc.TypeTag = DefaultType
	}
	if len(fields) > 0 {
		doc.Fields = fields
	}

	doc.SchemaJSON = doc.pageSchema()
	return doc
}

// FromPlaceholder builds the document standing in for a non-HTML resource.
func (b *Builder) FromPlaceholder(p Placeholder) Document {
	typ := p.Type
	if typ == "" {
		typ = PlaceholderType
	}
	doc := Document{
		URL:         p.URL,
		Name:        p.Name,
		Site:        b.site,
		Description: p.Description,
		Text:        composeText(p.Name, p.Description),
		TypeTag:     typ,
	}
	doc.SchemaJSON = doc.pageSchema()
	return doc
}

// FromRaw builds a document from a synthetic schema.org-style mapping such as
// a configured FAQ. The mapping must carry a url.
func (b *Builder) FromRaw(raw map[string]any) (Document, error) {
	u, _ := raw["url"].(string)
	if u == "" {
		return Document{}, fmt.Errorf("%w: raw document without url", ErrInvalidDocument)
	}

	name, _ := raw["name"].(string)
	if name == "" {
		name = "Page at " + u
	}
	description, _ := raw["description"].(string)

	doc := Document{
		URL:         u,
		Name:        name,
		Site:        b.site,
		Description: description,
	}

	fields := map[string]json.RawMessage{}
	for _, key := range MergeKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return Document{}, fmt.Errorf("%w: field %s: %v", ErrInvalidDocument, key, err)
		}
		if key == "@type" {
			doc.TypeTag = extract.TypeName(encoded)
			continue
		}
		fields[key] = encoded
	}
	if t, ok := b.types.TypeFor(u); ok {
		doc.TypeTag = t
	}
	if doc.TypeTag == "" {
		doc.TypeTag = DefaultType
	}
	if len(fields) > 0 {
		doc.Fields = fields
	}

	body := description
	if body == "" {
		body = RenderQuestions(fields["mainEntity"])
	}
	doc.Text = composeText(name, body)
	doc.SchemaJSON = doc.pageSchema()
	return doc, nil
}

type question struct {
	Name           string `json:"name"`
	AcceptedAnswer struct {
		Text string `json:"text"`
	} `json:"acceptedAnswer"`
}

// RenderQuestions flattens a schema.org Question list into "Q/A" text.
func RenderQuestions(mainEntity json.RawMessage) string {
	if len(mainEntity) == 0 {
		return ""
	}
	var qs []question
	if err := json.Unmarshal(mainEntity, &qs); err != nil {
		var q question
		if err := json.Unmarshal(mainEntity, &q); err != nil {
			return ""
		}
		qs = []question{q}
	}

	parts := make([]string, 0, len(qs))
	for _, q := range qs {
		if q.Name == "" {
			continue
		}
		parts = append(parts, "Q: "+q.Name+"\nA: "+q.AcceptedAnswer.Text)
	}
	return strings.Join(parts, "\n\n")
}

// IsNonHTML reports whether rawURL points at a resource that is not parsed
// as HTML, judged by its path extension.
func IsNonHTML(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return nonHTMLExtensions[strings.ToLower(path.Ext(u.Path))]
}

// GenericPlaceholder names a non-HTML resource after its file.
func GenericPlaceholder(rawURL string) Placeholder {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}
	return Placeholder{
		URL:         rawURL,
		Name:        name,
		Type:        PlaceholderType,
		Description: "Document available at " + rawURL,
	}
}
