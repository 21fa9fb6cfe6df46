package collector

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MaarivExtractor 解析 maariv 快讯文章列表，记者名作为描述
type MaarivExtractor struct{}

func (MaarivExtractor) Name() string {
	return "maariv"
}

func (MaarivExtractor) Extract(doc *goquery.Document, src Source, now time.Time) []RawItem {
	results := make([]RawItem, 0, src.limit())

	doc.Find("article.breaking-news-item").Each(func(_ int, s *goquery.Selection) {
		title := CleanupHeadline(s.Find(".breaking-news-title").First().Text())
		if title == "" {
			return
		}

		href, _ := s.Find("a").First().Attr("href")
		link := AbsoluteURL(src.URL, href)

		timeAttr, _ := s.Find("time").First().Attr("datetime")
		published, ok := ParseDatetime(timeAttr, now)
		if !ok {
			published = now
		}

		results = append(results, RawItem{
			ID:          ItemID(src.ID, link),
			SourceID:    src.ID,
			Source:      src.Name,
			Title:       title,
			Link:        link,
			Description: truncateRunes(CleanupHeadline(s.Find(".breaking-news-reporter").First().Text()), descriptionMaxRunes),
			PublishedAt: published,
		})
	})

	return results
}
