package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/kismet-tech/NLWeb/internal/text"
)

const contentNamespace = "http://purl.org/rss/1.0/modules/content/"

var pubDateLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "Mon, 2 Jan 2006 15:04:05 -0700"}

type rssItem struct {
	Title       string
	Link        string
	Description string
	PubDate     string
	Encoded     string
}

// field maps a direct child of <item> to its slot. Core elements count only in
// the item's own namespace (none for RSS 2.0), so extensions such as atom:link
// are ignored.
func (it *rssItem) field(name xml.Name, itemSpace string) *string {
	if name.Space == "" || name.Space == itemSpace {
		switch name.Local {
		case "title":
			return &it.Title
		case "link":
			return &it.Link
		case "description":
			return &it.Description
		case "pubDate":
			return &it.PubDate
		}
		return nil
	}
	if name.Local == "encoded" && (name.Space == contentNamespace || name.Space == "content") {
		return &it.Encoded
	}
	return nil
}

// decodeItem reads the children of one <item> up to its end tag. The first
// non-empty value of each field wins.
func decodeItem(dec *xml.Decoder, start xml.StartElement) (rssItem, error) {
	var it rssItem
	for {
		tok, err := dec.Token()
		if err != nil {
			return it, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			target := it.field(t.Name, start.Name.Space)
			if target == nil || strings.TrimSpace(*target) != "" {
				if err := dec.Skip(); err != nil {
					return it, err
				}
				continue
			}
			var v string
			if err := dec.DecodeElement(&v, &t); err != nil {
				return it, err
			}
			*target = v
		case xml.EndElement:
			return it, nil
		}
	}
}

// ManualXMLStrategy walks the payload as plain XML and reads every <item>
// element regardless of where it sits. It tolerates documents the syndication
// parser cannot classify.
type ManualXMLStrategy struct{}

func (ManualXMLStrategy) Name() string { return StrategyManualXML }

func (ManualXMLStrategy) Extract(ctx context.Context, src *FeedSource) ([]Record, error) {
	raw, err := src.Raw(ctx)
	if err != nil {
		return nil, err
	}
	records, meta, err := ParseItems(raw)
	if meta.Title != "" || meta.Link != "" {
		src.SetMeta(meta)
	}
	return records, err
}

// ParseItems decodes every <item> element in raw. Channel title, link and
// description are returned as well when present.
func ParseItems(raw []byte) ([]Record, FeedMeta, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		records []Record
		meta    FeedMeta
		stack   []xml.Name
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, meta, fmt.Errorf("%w: %v", ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var parent xml.Name
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}

			switch {
			case t.Name.Local == "item":
				it, err := decodeItem(dec, t)
				if err != nil {
					return records, meta, fmt.Errorf("%w: item: %v", ErrParse, err)
				}
				records = append(records, it.record())
				continue
			case parent.Local == "channel" && (t.Name.Space == "" || t.Name.Space == parent.Space):
				if target := meta.field(t.Name.Local); target != nil && *target == "" {
					var v string
					if err := dec.DecodeElement(&v, &t); err != nil {
						return records, meta, fmt.Errorf("%w: channel %s: %v", ErrParse, t.Name.Local, err)
					}
					*target = strings.TrimSpace(v)
					continue
				}
			}
			stack = append(stack, t.Name)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return records, meta, nil
}

func (m *FeedMeta) field(local string) *string {
	switch local {
	case "title":
		return &m.Title
	case "link":
		return &m.Link
	case "description":
		return &m.Description
	}
	return nil
}

func (it rssItem) record() Record {
	body := it.Encoded
	if strings.TrimSpace(body) == "" {
		body = it.Description
	}
	body = text.StripCDATA(strings.TrimSpace(body))

	rec := Record{
		Title:       strings.TrimSpace(it.Title),
		Link:        strings.TrimSpace(it.Link),
		Body:        body,
		Description: text.StripCDATA(strings.TrimSpace(it.Description)),
		Published:   strings.TrimSpace(it.PubDate),
	}
	for _, layout := range pubDateLayouts {
		if ts, err := time.Parse(layout, rec.Published); err == nil {
			rec.PublishedAt = &ts
			break
		}
	}
	return rec
}
