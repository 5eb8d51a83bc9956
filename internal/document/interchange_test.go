package document_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kismet-tech/NLWeb/internal/document"
)

func TestInterchange_RoundTrip(t *testing.T) {
	docs := []document.Document{
		{
			URL:        "https://example.com/a",
			Name:       "A & B <tags>",
			Site:       "site",
			Text:       "A\n\nbody with\ttab",
			TypeTag:    "Product",
			Fields:     map[string]json.RawMessage{"offers": json.RawMessage(`{"price":"1"}`)},
			SchemaJSON: `{"@type":"Product"}`,
		},
		{URL: "https://example.com/b", Name: "B", Site: "site", Text: "B\n\n", TypeTag: "WebPage", SchemaJSON: "{}"},
	}

	path := filepath.Join(t.TempDir(), "docs.txt")
	require.NoError(t, document.WriteFile(path, docs))

	got, err := document.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, docs[0].URL, got[0].URL)
	assert.Equal(t, docs[0].Text, got[0].Text)
	assert.JSONEq(t, string(docs[0].Fields["offers"]), string(got[0].Fields["offers"]))
	assert.Equal(t, docs[1], got[1])
}

func TestEncode_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, document.Encode(&buf, []document.Document{{URL: "https://x.io/1", Name: "<b>", TypeTag: "WebPage"}}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	u, body, ok := strings.Cut(lines[0], "\t")
	require.True(t, ok)
	assert.Equal(t, "https://x.io/1", u)
	assert.Contains(t, body, `"name":"<b>"`)
	assert.NotContains(t, body, "https://x.io/1", "url travels only in the prefix")
}

func TestEncode_RejectsTabInURL(t *testing.T) {
	err := document.Encode(&bytes.Buffer{}, []document.Document{{URL: "https://x.io/\tbad"}})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantErr   bool
	}{
		{"No Trailing Newline", "https://x.io/1\t{\"name\":\"one\"}", 1, false},
		{"Blank Lines", "\nhttps://x.io/1\t{\"name\":\"one\"}\n\n", 1, false},
		{"CRLF", "https://x.io/1\t{\"name\":\"one\"}\r\nhttps://x.io/2\t{\"name\":\"two\"}\r\n", 2, false},
		{"Missing Tab", "https://x.io/1 {\"name\":\"one\"}\n", 0, true},
		{"Bad JSON", "https://x.io/1\t{nope}\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := document.Decode(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, document.ErrMalformedLine)
				return
			}
			require.NoError(t, err)
			assert.Len(t, docs, tt.wantCount)
		})
	}
}
