package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kismet-tech/NLWeb/features/run"
	"github.com/kismet-tech/NLWeb/internal/document"
	"github.com/kismet-tech/NLWeb/internal/fetch"
	"github.com/kismet-tech/NLWeb/internal/profile"
)

type fakeIndexer struct {
	mu        sync.Mutex
	calls     []string
	points    map[string][]document.Document
	deleteErr error
	upsertErr error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{points: map[string][]document.Document{}}
}

func (f *fakeIndexer) EnsureCollection(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ensure")
	return nil
}

func (f *fakeIndexer) Upsert(ctx context.Context, docs []document.Document) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upsert")
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	for _, d := range docs {
		f.points[d.Site] = append(f.points[d.Site], d)
	}
	return len(docs), nil
}

func (f *fakeIndexer) DeleteSite(ctx context.Context, site string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	n := int64(len(f.points[site]))
	delete(f.points, site)
	return n, nil
}

type captureRecorder struct {
	runs []*run.Run
}

func (c *captureRecorder) Record(ctx context.Context, r *run.Run) error {
	c.runs = append(c.runs, r)
	return nil
}

func newTestPipeline(idx Indexer, rec Recorder) *Pipeline {
	reader := fetch.NewReader(5*time.Second, "nlweb-test", 1<<20)
	return New(reader, idx, WithRecorder(rec), WithCrawlDelay(0))
}

const twoEntryFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Hotel News</title><link>https://blog.example.com</link>
<item><title>Spring Offers</title><link>https://blog.example.com/spring</link>
<description>Rooms are 20% off.</description><pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate></item>
<item><title>Spa Reopens</title><link>https://blog.example.com/spa</link>
<description>The spa is open again.</description></item>
</channel></rss>`

func TestRunFeed_IndexesEveryEntry(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, twoEntryFeed)
	}))
	defer ts.Close()

	idx := newFakeIndexer()
	rec := &captureRecorder{}
	var out bytes.Buffer
	p := New(fetch.NewReader(5*time.Second, "nlweb-test", 1<<20), idx, WithRecorder(rec), WithProgress(&out))

	rep, err := p.RunFeed(context.Background(), ts.URL, "hotelblog", true)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Found)
	assert.Equal(t, 2, rep.Indexed)
	assert.Equal(t, []string{"ensure", "delete", "upsert"}, idx.calls)

	docs := idx.points["hotelblog"]
	require.Len(t, docs, 2)
	assert.Equal(t, "https://blog.example.com/spring", docs[0].URL)
	assert.Equal(t, "Spring Offers\n\nRooms are 20% off.", docs[0].Text)
	assert.Equal(t, document.DefaultType, docs[0].TypeTag)
	assert.Contains(t, docs[0].SchemaJSON, `"title":"Spring Offers"`)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.KindFeed, rec.runs[0].Kind)
	assert.Equal(t, run.StatusSucceeded, rec.runs[0].Status)
	assert.Equal(t, rep.RunID, rec.runs[0].ID)
	assert.Contains(t, out.String(), "Found 2 entries in feed")
}

func TestRunFeed_NoDocuments(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer ts.Close()

	idx := newFakeIndexer()
	rec := &captureRecorder{}
	p := newTestPipeline(idx, rec)

	_, err := p.RunFeed(context.Background(), ts.URL, "hotelblog", true)
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.Empty(t, idx.calls)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.StatusEmpty, rec.runs[0].Status)
}

func TestRunFeed_DeleteFailureStillLoads(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, twoEntryFeed)
	}))
	defer ts.Close()

	idx := newFakeIndexer()
	idx.deleteErr = errors.New("index unavailable")
	p := newTestPipeline(idx, nil)

	rep, err := p.RunFeed(context.Background(), ts.URL, "hotelblog", true)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Indexed)
	assert.Equal(t, int64(0), rep.Deleted)
}

func TestRunFeed_UpsertFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, twoEntryFeed)
	}))
	defer ts.Close()

	idx := newFakeIndexer()
	idx.upsertErr = errors.New("embedding failed")
	rec := &captureRecorder{}
	p := newTestPipeline(idx, rec)

	_, err := p.RunFeed(context.Background(), ts.URL, "hotelblog", false)
	require.Error(t, err)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.StatusFailed, rec.runs[0].Status)
	assert.Equal(t, "embedding failed", rec.runs[0].Error)
}

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var ts *httptest.Server

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		base := ts.URL
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>%[1]s/</loc></url>
<url><loc>%[1]s/about</loc></url>
<url><loc>%[1]s/missing</loc></url>
<url><loc>%[1]s/deck.pdf</loc></url>
<url><loc>%[1]s/cart</loc></url>
<url><loc>https://elsewhere.example.com/page</loc></url>
</urlset>`, base)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title> About us </title></head><body><p>We   build things.</p></body></html>`)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("excluded url fetched: %s", r.URL)
	})
	mux.HandleFunc("/deck.pdf", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("non-html url fetched: %s", r.URL)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Home</title>
<meta name="description" content="Direct-to-guest AI">
<script type="application/ld+json">{"@type":"Organization","publisher":{"name":"Kismet"}}</script>
</head><body>Welcome</body></html>`)
	})

	ts = httptest.NewServer(mux)
	return ts
}

func testProfile(base string) *profile.Profile {
	return &profile.Profile{
		Site:         "testsite",
		SitemapURL:   base + "/sitemap.xml",
		BaseURL:      base,
		SameHostOnly: true,
		Exclusions:   []string{"/cart"},
		Placeholders: []document.Placeholder{{
			URL:         base + "/deck.pdf",
			Name:        "Pitch deck",
			Type:        "PresentationDigitalDocument",
			Description: "The deck.",
		}},
		Documents: []map[string]any{{
			"url":   base + "/#faq",
			"name":  "FAQ",
			"@type": "FAQPage",
			"mainEntity": []any{
				map[string]any{"name": "Q1?", "acceptedAnswer": map[string]any{"text": "A1."}},
			},
		}},
	}
}

func TestCrawl_BuildsDocumentsPerURL(t *testing.T) {
	ts := newSiteServer(t)
	defer ts.Close()

	rec := &captureRecorder{}
	p := newTestPipeline(newFakeIndexer(), rec)

	docs, rep, err := p.Crawl(context.Background(), testProfile(ts.URL))
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, 1, rep.Skipped)

	home := docs[0]
	assert.Equal(t, ts.URL+"/", home.URL)
	assert.Equal(t, "Organization", home.TypeTag)
	assert.Equal(t, "Direct-to-guest AI", home.Description)
	assert.Contains(t, home.SchemaJSON, `"publisher":{"name":"Kismet"}`)

	about := docs[1]
	assert.Equal(t, "About us", about.Name)
	assert.Equal(t, "WebPage", about.TypeTag)
	assert.Equal(t, "", about.Description)

	deck := docs[2]
	assert.Equal(t, "PresentationDigitalDocument", deck.TypeTag)
	assert.Equal(t, "Pitch deck", deck.Name)

	faq := docs[3]
	assert.Equal(t, "FAQPage", faq.TypeTag)
	assert.Contains(t, faq.Text, "Q: Q1?\nA: A1.")

	for _, d := range docs {
		assert.Equal(t, "testsite", d.Site)
	}
	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.KindCrawl, rec.runs[0].Kind)
}

func TestCrawl_SitemapFailureKeepsSyntheticDocuments(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := newTestPipeline(newFakeIndexer(), nil)
	docs, _, err := p.Crawl(context.Background(), testProfile(ts.URL))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "FAQPage", docs[0].TypeTag)
}

func TestCrawl_NothingFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	prof := testProfile(ts.URL)
	prof.Documents = nil
	rec := &captureRecorder{}
	p := newTestPipeline(newFakeIndexer(), rec)

	_, _, err := p.Crawl(context.Background(), prof)
	assert.ErrorIs(t, err, ErrNoDocuments)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.StatusEmpty, rec.runs[0].Status)
}

func TestRunSite_ReplacesSiteContents(t *testing.T) {
	ts := newSiteServer(t)
	defer ts.Close()

	idx := newFakeIndexer()
	idx.points["testsite"] = make([]document.Document, 7)
	p := newTestPipeline(idx, nil)

	out := filepath.Join(t.TempDir(), "testsite.txt")
	rep, err := p.RunSite(context.Background(), testProfile(ts.URL), SiteOptions{OutputPath: out})
	require.NoError(t, err)

	assert.Equal(t, int64(7), rep.Deleted)
	assert.Equal(t, 4, rep.Indexed)
	assert.Len(t, idx.points["testsite"], 4)
	assert.Equal(t, []string{"ensure", "delete", "upsert"}, idx.calls)

	saved, err := document.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, saved, 4)
}

func TestLoad_OverridesSite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.txt")
	require.NoError(t, document.WriteFile(path, []document.Document{
		{URL: "https://a.example.com/1", Name: "One", Site: "old", Text: "One", TypeTag: "WebPage"},
		{URL: "https://a.example.com/2", Name: "Two", Site: "old", Text: "Two", TypeTag: "WebPage"},
	}))

	idx := newFakeIndexer()
	p := newTestPipeline(idx, nil)

	rep, err := p.Load(context.Background(), path, "fresh", false)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Indexed)
	assert.Len(t, idx.points["fresh"], 2)
	assert.Empty(t, idx.points["old"])
	assert.Equal(t, []string{"ensure", "upsert"}, idx.calls)
}

func TestLoad_MissingFile(t *testing.T) {
	p := newTestPipeline(newFakeIndexer(), nil)
	_, err := p.Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), "x", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDeleteSite(t *testing.T) {
	idx := newFakeIndexer()
	idx.points["gone"] = make([]document.Document, 3)
	rec := &captureRecorder{}
	p := newTestPipeline(idx, rec)

	rep, err := p.DeleteSite(context.Background(), "gone")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rep.Deleted)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, run.KindDelete, rec.runs[0].Kind)
}

// slowReader serves a fixed sitemap and takes a while to answer each page.
type slowReader struct {
	mu      sync.Mutex
	urls    []string
	latency time.Duration
	starts  []time.Time
	ends    []time.Time
	onFetch func()
}

func (r *slowReader) Sitemap(ctx context.Context, url string) ([]string, error) {
	return r.urls, nil
}

func (r *slowReader) Fetch(ctx context.Context, url string) (*fetch.FetchResult, error) {
	r.mu.Lock()
	r.starts = append(r.starts, time.Now())
	r.mu.Unlock()
	if r.onFetch != nil {
		r.onFetch()
	}
	time.Sleep(r.latency)
	r.mu.Lock()
	r.ends = append(r.ends, time.Now())
	r.mu.Unlock()
	body := fmt.Sprintf("<html><head><title>%s</title></head><body><p>page</p></body></html>", url)
	return &fetch.FetchResult{URL: url, Body: []byte(body), ContentType: "text/html", StatusCode: http.StatusOK}, nil
}

func slowProfile() *profile.Profile {
	return &profile.Profile{Site: "slowsite", SitemapURL: "https://slow.example.com/sitemap.xml"}
}

func TestCrawl_DelayFollowsEachFetch(t *testing.T) {
	const delay = 60 * time.Millisecond
	reader := &slowReader{
		urls: []string{
			"https://slow.example.com/a",
			"https://slow.example.com/b",
			"https://slow.example.com/c",
		},
		latency: 2 * delay,
	}
	p := New(reader, newFakeIndexer(), WithCrawlDelay(delay))

	docs, _, err := p.Crawl(context.Background(), slowProfile())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	require.Len(t, reader.starts, 3)
	for i := 1; i < len(reader.starts); i++ {
		gap := reader.starts[i].Sub(reader.ends[i-1])
		assert.GreaterOrEqual(t, gap, delay, "gap before fetch %d", i)
	}
}

func TestCrawl_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &slowReader{
		urls:    []string{"https://slow.example.com/a", "https://slow.example.com/b"},
		onFetch: cancel,
	}
	p := New(reader, newFakeIndexer(), WithCrawlDelay(time.Hour))

	done := make(chan error, 1)
	go func() {
		_, _, err := p.Crawl(ctx, slowProfile())
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not stop after cancellation")
	}
	assert.Len(t, reader.starts, 1)
}
