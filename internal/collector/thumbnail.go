package collector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	imageSearchURL   = "https://www.google.com/search?tbm=isch&q="
	thumbnailTimeout = 10 * time.Second
)

// ThumbnailFinder 按标题做一次图片搜索，取结果页第一张 http(s) 图片作为配图
type ThumbnailFinder struct {
	Fetch   FetchFunc
	Timeout time.Duration
}

func NewThumbnailFinder(fetch FetchFunc) *ThumbnailFinder {
	return &ThumbnailFinder{Fetch: fetch, Timeout: thumbnailTimeout}
}

// Find 找不到时返回空字符串和 nil；抓取或解析失败返回错误，由缓存层吞掉
func (t *ThumbnailFinder) Find(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil
	}

	html, err := t.Fetch(ctx, imageSearchURL+url.QueryEscape(title), t.Timeout)
	if err != nil {
		log.Printf("thumbnail: fetch %q: %v", title, err)
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("thumbnail: parse: %w", err)
	}

	var src string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("src")
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			src = v
			return false
		}
		return true
	})
	return src, nil
}
