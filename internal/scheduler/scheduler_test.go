package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/BreakingHub/internal/collector"
	"github.com/LJTian/BreakingHub/internal/processor"
	"github.com/PuerkitoBio/goquery"
)

// listExtractor 读取 <li data-id data-min>title</li>，data-min 表示几分钟前
type listExtractor struct{}

func (listExtractor) Name() string { return "list" }

func (listExtractor) Extract(doc *goquery.Document, src collector.Source, now time.Time) []collector.RawItem {
	var out []collector.RawItem
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-id")
		minStr, _ := s.Attr("data-min")
		mins, _ := strconv.Atoi(minStr)
		out = append(out, collector.RawItem{
			ID:          id,
			SourceID:    src.ID,
			Source:      src.Name,
			Title:       s.Text(),
			Link:        src.URL + "/" + id,
			PublishedAt: now.Add(-time.Duration(mins) * time.Minute),
		})
	})
	return out
}

func listPage(prefix string, n, offset int) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<li data-id="%s%d" data-min="%d">%s headline %d</li>`, prefix, i, i*3+offset, prefix, i)
	}
	b.WriteString("</ul>")
	return b.String()
}

func testSources(ids ...string) []collector.Source {
	out := make([]collector.Source, len(ids))
	for i, id := range ids {
		out[i] = collector.Source{ID: id, Name: id, URL: "https://" + id + ".test", Limit: 12, Extractor: listExtractor{}}
	}
	return out
}

type fakeFetch struct {
	pages map[string]string
	errs  map[string]error
	slow  map[string]bool
}

func (f *fakeFetch) Fetch(ctx context.Context, url string, _ time.Duration) (string, error) {
	if f.slow[url] {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	if err := f.errs[url]; err != nil {
		return "", err
	}
	return f.pages[url], nil
}

func newTestScheduler(t *testing.T, f *fakeFetch, opts Options, ids ...string) *Scheduler {
	t.Helper()
	s, err := New("", testSources(ids...), f.Fetch, processor.NewSimpleProcessor(), opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func TestRefreshMergesAllSourcesNewestFirst(t *testing.T) {
	f := &fakeFetch{pages: map[string]string{
		"https://walla.test":  listPage("w", 5, 0),
		"https://ynet.test":   listPage("y", 5, 1),
		"https://maariv.test": listPage("m", 5, 2),
	}}
	s := newTestScheduler(t, f, Options{}, "walla", "ynet", "maariv")

	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if len(snap.Items) != 15 {
		t.Fatalf("expected 15 items, got %d", len(snap.Items))
	}
	for i := 1; i < len(snap.Items); i++ {
		if snap.Items[i].PublishedAt.After(snap.Items[i-1].PublishedAt) {
			t.Fatalf("items not sorted newest-first at %d", i)
		}
	}
	if s.Snapshot() != snap {
		t.Fatalf("refresh should publish the new snapshot")
	}

	// 同样的页面再刷新一次，条目 ID 不变
	again, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second Refresh error: %v", err)
	}
	before := snap.IDs()
	for _, it := range again.Items {
		if _, ok := before[it.ID]; !ok {
			t.Fatalf("item id %s changed between refreshes", it.ID)
		}
	}
}

func TestRefreshFailFastClearsSnapshot(t *testing.T) {
	f := &fakeFetch{
		pages: map[string]string{"https://walla.test": listPage("w", 3, 0), "https://ynet.test": listPage("y", 3, 0)},
		errs:  map[string]error{"https://maariv.test": &collector.HTTPError{URL: "https://maariv.test", Status: 503}},
		slow:  map[string]bool{"https://ynet.test": true},
	}
	s := newTestScheduler(t, f, Options{}, "walla", "ynet", "maariv")
	s.snap.Store(&processor.Snapshot{Items: []processor.MergedItem{{ID: "old"}}})

	start := time.Now()
	snap, err := s.Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected refresh error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("slow source should be cancelled after the first failure")
	}

	var rerr *RefreshError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RefreshError, got %T", err)
	}
	if len(rerr.Failures) != 1 || rerr.Failures[0].SourceID != "maariv" {
		t.Fatalf("unexpected failures: %+v", rerr.Failures)
	}
	var herr *collector.HTTPError
	if !errors.As(err, &herr) || herr.Status != 503 {
		t.Fatalf("http error should be reachable through errors.As: %v", err)
	}
	if len(snap.Items) != 0 || snap.Err == "" {
		t.Fatalf("failed refresh should publish an empty snapshot with error: %+v", snap)
	}
	if len(s.Snapshot().Items) != 0 {
		t.Fatalf("previous snapshot should be replaced")
	}
}

func TestRefreshFailFastAbortsInflightCollyRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/hang", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		fmt.Fprint(w, listPage("h", 1, 0))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sources := testSources("broken", "hang")
	sources[0].URL = srv.URL + "/broken"
	sources[1].URL = srv.URL + "/hang"

	s, err := New("", sources, collector.NewCollyFetcher("").Fetch, processor.NewSimpleProcessor(), Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	start := time.Now()
	_, err = s.Refresh(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("refresh should stop once a source fails, took %s", elapsed)
	}
	var rerr *RefreshError
	if !errors.As(err, &rerr) || len(rerr.Failures) != 1 || rerr.Failures[0].SourceID != "broken" {
		t.Fatalf("unexpected refresh error: %v", err)
	}
}

func TestRefreshPartialKeepsSuccessfulSources(t *testing.T) {
	f := &fakeFetch{
		pages: map[string]string{"https://walla.test": listPage("w", 4, 0)},
		errs:  map[string]error{"https://ynet.test": collector.ErrTimeout},
	}
	s := newTestScheduler(t, f, Options{Partial: true}, "walla", "ynet")

	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("partial refresh should not fail: %v", err)
	}
	if len(snap.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(snap.Items))
	}
	if len(snap.Failures) != 1 || snap.Failures[0].SourceID != "ynet" {
		t.Fatalf("unexpected failures: %+v", snap.Failures)
	}
}

func TestRefreshPartialAllFailed(t *testing.T) {
	f := &fakeFetch{errs: map[string]error{
		"https://walla.test": collector.ErrTimeout,
		"https://ynet.test":  collector.ErrTimeout,
	}}
	s := newTestScheduler(t, f, Options{Partial: true}, "walla", "ynet")

	_, err := s.Refresh(context.Background())
	if !errors.Is(err, collector.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

type memCache struct {
	mu   sync.Mutex
	snap *processor.Snapshot
}

func (c *memCache) SaveSnapshot(_ context.Context, snap *processor.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	return nil
}

func (c *memCache) LoadSnapshot(_ context.Context) (*processor.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return nil, errors.New("miss")
	}
	return c.snap, nil
}

func TestRefreshCachesAndRunsHook(t *testing.T) {
	cache := &memCache{}
	var hooked *processor.Snapshot
	f := &fakeFetch{pages: map[string]string{"https://walla.test": listPage("w", 2, 0)}}
	s := newTestScheduler(t, f, Options{
		Cache:     cache,
		OnRefresh: func(_ context.Context, snap *processor.Snapshot) { hooked = snap },
	}, "walla")

	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if hooked != snap || cache.snap != snap {
		t.Fatalf("hook and cache should receive the published snapshot")
	}

	warm := newTestScheduler(t, f, Options{Cache: cache}, "walla")
	if !warm.Warm(context.Background()) {
		t.Fatalf("Warm should load the cached snapshot")
	}
	if len(warm.Snapshot().Items) != 2 {
		t.Fatalf("warm snapshot has %d items", len(warm.Snapshot().Items))
	}
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	_, err := New("not a cron", nil, (&fakeFetch{}).Fetch, nil, Options{})
	if err == nil {
		t.Fatalf("expected cron parse error")
	}
}
