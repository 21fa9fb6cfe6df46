package collector

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/BreakingHub/internal/config"
)

const wallaHTML = `<html><body><div class="breaking-list">
<section><a href="/item/3001"><span class="red-time">23:50</span>
  <h3 class="breaking-item-title">23:50 /  late   headline</h3></a></section>
<section><a href="/item/3002"><span class="red-time">00:10</span>
  <h3 class="breaking-item-title">- early headline</h3></a></section>
<section><a href="/item/3003"><span class="red-time">00:05</span></a></section>
<section><h3 class="breaking-item-title">no anchor, no clock</h3></section>
</div></body></html>`

const ynetHTML = `<html><body>
<div class="AccordionSection"><div class="title">First ynet</div><time datetime="2024-03-10T00:20:00+02:00"></time></div>
<div class="AccordionSection"><div class="title">   </div><time datetime="2024-03-10T00:15:00+02:00"></time></div>
<div class="AccordionSection"><div class="title">Undated ynet</div></div>
</body></html>`

const maarivHTML = `<html><body>
<article class="breaking-news-item"><a href="https://www.maariv.co.il/news/1"><h2 class="breaking-news-title">Maariv one</h2></a>
  <time datetime="2024-03-09T22:00:00+02:00"></time><span class="breaking-news-reporter"> Reporter  A </span></article>
<article class="breaking-news-item"><a href="/news/2"><h2 class="breaking-news-title">Maariv two</h2></a></article>
<article class="breaking-news-item"><span>missing title</span></article>
</body></html>`

func testNow() time.Time {
	return time.Date(2024, 3, 10, 0, 30, 0, 0, testLoc)
}

func sourceFor(id string) Source {
	for _, s := range DefaultSources() {
		if s.ID == id {
			return s
		}
	}
	panic("unknown source " + id)
}

func TestWallaExtractor(t *testing.T) {
	src := sourceFor("walla")
	items, err := ExtractItems(wallaHTML, src, testNow())
	if err != nil {
		t.Fatalf("ExtractItems error: %v", err)
	}
	// 第三个 section 缺少标题，应被跳过
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(items), items)
	}

	first := items[0]
	if first.Title != "late headline" {
		t.Fatalf("clock prefix and clutter should be stripped, got %q", first.Title)
	}
	if first.Link != "https://news.walla.co.il/item/3001" {
		t.Fatalf("relative link not resolved: %q", first.Link)
	}
	wantFirst := time.Date(2024, 3, 9, 23, 50, 0, 0, testLoc)
	if !first.PublishedAt.Equal(wantFirst) {
		t.Fatalf("23:50 at 00:30 should roll back to previous day, got %s", first.PublishedAt)
	}
	if first.SourceID != "walla" || first.Source != src.Name {
		t.Fatalf("source fields not set: %+v", first)
	}

	if items[1].Title != "early headline" {
		t.Fatalf("unexpected second title %q", items[1].Title)
	}
	if !items[1].PublishedAt.Equal(time.Date(2024, 3, 10, 0, 10, 0, 0, testLoc)) {
		t.Fatalf("00:10 should stay today, got %s", items[1].PublishedAt)
	}

	last := items[2]
	if last.Link != src.URL {
		t.Fatalf("missing anchor should fall back to source url, got %q", last.Link)
	}
	if !last.PublishedAt.Equal(testNow()) {
		t.Fatalf("missing clock should stamp now, got %s", last.PublishedAt)
	}
}

func TestExtractorsStableIDsAcrossRuns(t *testing.T) {
	cases := []struct {
		id   string
		html string
	}{
		{"walla", wallaHTML},
		{"ynet", ynetHTML},
		{"maariv", maarivHTML},
	}
	for _, c := range cases {
		src := sourceFor(c.id)
		first, err := ExtractItems(c.html, src, testNow())
		if err != nil {
			t.Fatalf("%s: first extract: %v", c.id, err)
		}
		// 第二轮的 now 晚几分钟，快讯 ID 仍应一致
		second, err := ExtractItems(c.html, src, testNow().Add(3*time.Minute))
		if err != nil {
			t.Fatalf("%s: second extract: %v", c.id, err)
		}
		if len(first) != len(second) {
			t.Fatalf("%s: item count changed %d -> %d", c.id, len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("%s: item %d id changed %q -> %q", c.id, i, first[i].ID, second[i].ID)
			}
		}
	}
}

func TestYnetExtractor(t *testing.T) {
	src := sourceFor("ynet")
	items, err := ExtractItems(ynetHTML, src, testNow())
	if err != nil {
		t.Fatalf("ExtractItems error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("blank title should be skipped, got %d items", len(items))
	}
	if !items[0].PublishedAt.Equal(time.Date(2024, 3, 10, 0, 20, 0, 0, testLoc)) {
		t.Fatalf("datetime attribute not trusted: %s", items[0].PublishedAt)
	}
	if items[0].Link != src.URL {
		t.Fatalf("ynet items link to the channel page, got %q", items[0].Link)
	}
	if items[0].ID != ItemID("ynet", "2024-03-10T00:20:00+02:00") {
		t.Fatalf("ynet id should derive from datetime")
	}
	if items[1].ID != ItemID("ynet", "Undated ynet") {
		t.Fatalf("undated ynet id should derive from title")
	}
	if !items[1].PublishedAt.Equal(testNow()) {
		t.Fatalf("undated item should be stamped now")
	}
}

func TestMaarivExtractor(t *testing.T) {
	src := sourceFor("maariv")
	items, err := ExtractItems(maarivHTML, src, testNow())
	if err != nil {
		t.Fatalf("ExtractItems error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Description != "Reporter A" {
		t.Fatalf("reporter should become description, got %q", items[0].Description)
	}
	if items[1].Link != "https://www.maariv.co.il/news/2" {
		t.Fatalf("relative link not resolved: %q", items[1].Link)
	}
	if items[1].Description != "" {
		t.Fatalf("missing reporter should leave description empty")
	}
}

func TestMaarivExtractorGuardsLongReporter(t *testing.T) {
	html := `<article class="breaking-news-item"><a href="/news/9"><h2 class="breaking-news-title">Long</h2></a>
<span class="breaking-news-reporter">` + strings.Repeat("כ", 300) + `</span></article>`
	items, err := ExtractItems(html, sourceFor("maariv"), testNow())
	if err != nil || len(items) != 1 {
		t.Fatalf("ExtractItems = %d items, err %v", len(items), err)
	}
	if n := len([]rune(items[0].Description)); n != descriptionMaxRunes+1 {
		t.Fatalf("description runes = %d, want %d", n, descriptionMaxRunes+1)
	}
}

func TestExtractItemsAppliesLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<div class="breaking-list">`)
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `<section><a href="/item/%d"><h3 class="breaking-item-title">headline %d</h3></a></section>`, i, i)
	}
	b.WriteString(`</div>`)

	src := sourceFor("walla")
	src.Limit = 5
	items, err := ExtractItems(b.String(), src, testNow())
	if err != nil {
		t.Fatalf("ExtractItems error: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected limit 5, got %d", len(items))
	}
	if items[0].Title != "headline 0" || items[4].Title != "headline 4" {
		t.Fatalf("limit should keep source order, got %q..%q", items[0].Title, items[4].Title)
	}

	src.Limit = 0
	items, _ = ExtractItems(b.String(), src, testNow())
	if len(items) != DefaultItemLimit {
		t.Fatalf("unset limit should default to %d, got %d", DefaultItemLimit, len(items))
	}
}

func TestExtractItemsWithoutExtractor(t *testing.T) {
	_, err := ExtractItems("<html></html>", Source{ID: "broken"}, testNow())
	var ee *ExtractionError
	if !errors.As(err, &ee) || ee.SourceID != "broken" {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtractItemsToleratesUnknownMarkup(t *testing.T) {
	items, err := ExtractItems("<html><body><p>redesigned page</p></body></html>", sourceFor("maariv"), testNow())
	if err != nil {
		t.Fatalf("structural drift should not fail extraction: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestBuildSources(t *testing.T) {
	srcs, err := BuildSources(nil)
	if err != nil || len(srcs) != 3 {
		t.Fatalf("nil overrides should return built-ins, got %d, %v", len(srcs), err)
	}

	srcs, err = BuildSources([]config.SourceConfig{
		{ID: "ynet", Limit: 3},
		{ID: "mirror", URL: "https://mirror.example/b", Extractor: "maariv"},
	})
	if err != nil {
		t.Fatalf("BuildSources error: %v", err)
	}
	if srcs[0].Limit != 3 || srcs[0].URL == "" || srcs[0].Extractor.Name() != "ynet" {
		t.Fatalf("ynet override not merged: %+v", srcs[0])
	}
	if srcs[1].Name != "mirror" || srcs[1].Extractor.Name() != "maariv" {
		t.Fatalf("custom source not built: %+v", srcs[1])
	}

	if _, err := BuildSources([]config.SourceConfig{{ID: "x", URL: "https://x", Extractor: "nope"}}); err == nil {
		t.Fatalf("unknown extractor should fail")
	}
	if _, err := BuildSources([]config.SourceConfig{{ID: "ynet"}, {ID: "ynet"}}); err == nil {
		t.Fatalf("duplicate id should fail")
	}
}

// 编译期确认抽取器满足接口
var _ = []Extractor{WallaExtractor{}, YnetExtractor{}, MaarivExtractor{}}
