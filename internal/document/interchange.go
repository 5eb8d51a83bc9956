package document

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrMalformedLine = errors.New("malformed interchange line")

// Encode writes one "url<TAB>json" line per document.
func Encode(w io.Writer, docs []Document) error {
	bw := bufio.NewWriter(w)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, doc := range docs {
		if strings.ContainsAny(doc.URL, "\t\n") {
			return fmt.Errorf("document %d: url contains a tab or newline", i)
		}
		buf.Reset()
		// Encode appends the line terminator.
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		if _, err := bw.WriteString(doc.URL + "\t"); err != nil {
			return err
		}
		if _, err := bw.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads documents written by Encode. The URL is restored from the
// line prefix; blank lines are ignored.
func Decode(r io.Reader) ([]Document, error) {
	br := bufio.NewReader(r)
	var docs []Document

	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		if trimmed := strings.TrimRight(line, "\r\n"); strings.TrimSpace(trimmed) != "" {
			u, body, ok := strings.Cut(trimmed, "\t")
			if !ok {
				return nil, fmt.Errorf("%w: line %d: no tab separator", ErrMalformedLine, lineNo)
			}
			var doc Document
			if jerr := json.Unmarshal([]byte(body), &doc); jerr != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedLine, lineNo, jerr)
			}
			doc.URL = u
			docs = append(docs, doc)
		}

		if errors.Is(err, io.EOF) {
			return docs, nil
		}
	}
}

func WriteFile(path string, docs []Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, docs); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func ReadFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	docs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return docs, nil
}
