package collector

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// YnetExtractor 解析 ynet 快讯手风琴列表；条目没有独立链接，统一指向频道页
type YnetExtractor struct{}

func (YnetExtractor) Name() string {
	return "ynet"
}

func (YnetExtractor) Extract(doc *goquery.Document, src Source, now time.Time) []RawItem {
	results := make([]RawItem, 0, src.limit())

	doc.Find(".AccordionSection").Each(func(_ int, s *goquery.Selection) {
		title := CleanupHeadline(s.Find(".title").First().Text())
		if title == "" {
			return
		}

		timeAttr, _ := s.Find("time").First().Attr("datetime")
		timeAttr = strings.TrimSpace(timeAttr)
		published, ok := ParseDatetime(timeAttr, now)
		if !ok {
			published = now
		}

		key := timeAttr
		if key == "" {
			key = title
		}

		results = append(results, RawItem{
			ID:          ItemID(src.ID, key),
			SourceID:    src.ID,
			Source:      src.Name,
			Title:       title,
			Link:        src.URL,
			PublishedAt: published,
		})
	})

	return results
}
