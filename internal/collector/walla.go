package collector

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// WallaExtractor 解析 walla 快讯页：每个 section 一条，只带时分（.red-time）
type WallaExtractor struct{}

func (WallaExtractor) Name() string {
	return "walla"
}

func (WallaExtractor) Extract(doc *goquery.Document, src Source, now time.Time) []RawItem {
	results := make([]RawItem, 0, src.limit())

	doc.Find(".breaking-list section").Each(func(_ int, s *goquery.Selection) {
		headline := s.Find(".breaking-item-title").First()
		if headline.Length() == 0 {
			return
		}

		timeText := strings.TrimSpace(s.Find(".red-time").First().Text())
		title := CleanupHeadline(headline.Text())
		// 标题节点里常常带着时间前缀
		if timeText != "" && strings.HasPrefix(title, timeText) {
			title = CleanupHeadline(strings.Replace(title, timeText, "", 1))
		}
		if title == "" {
			return
		}

		href, _ := s.Find("a").First().Attr("href")
		link := AbsoluteURL(src.URL, href)

		published := now
		id := ItemID(src.ID, link, title)
		if _, _, ok := ParseClock(timeText); ok {
			published = ResolveClock(timeText, now)
			id = ItemID(src.ID, link, millis(published))
		}

		results = append(results, RawItem{
			ID:          id,
			SourceID:    src.ID,
			Source:      src.Name,
			Title:       title,
			Link:        link,
			PublishedAt: published,
		})
	})

	return results
}
