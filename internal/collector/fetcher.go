package collector

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultItemLimit 数据源未配置条数上限时使用
const DefaultItemLimit = 12

// RawItem 统一采集后的基础结构，合并去重之前的形态
type RawItem struct {
	// ID 由各抽取器决定，需保证同一输入得到同一 ID，不要求全局唯一
	ID       string `json:"id"`
	SourceID string `json:"sourceId"`
	Source   string `json:"source"`
	Title    string `json:"title"`
	// Link 为绝对地址，无法解析时退回数据源地址
	Link        string    `json:"link"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Extractor 抽象每一种页面结构：把已解析的文档转为有序的条目列表
type Extractor interface {
	Name() string
	Extract(doc *goquery.Document, src Source, now time.Time) []RawItem
}

// Source 描述一个数据源，启动时构建，之后只读
type Source struct {
	ID        string
	Name      string
	URL       string
	Limit     int
	Extractor Extractor
}

func (s Source) limit() int {
	if s.Limit > 0 {
		return s.Limit
	}
	return DefaultItemLimit
}

// ExtractionError 整个文档无法解析时返回，由调度层按数据源失败处理
type ExtractionError struct {
	SourceID string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.SourceID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ExtractItems 解析 html 并交给数据源的抽取器，结果按 Limit 截断。
// 单个节点缺字段由抽取器自行跳过；文档级错误返回 ExtractionError。
func ExtractItems(html string, src Source, now time.Time) ([]RawItem, error) {
	if src.Extractor == nil {
		return nil, &ExtractionError{SourceID: src.ID, Err: fmt.Errorf("no extractor configured")}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{SourceID: src.ID, Err: err}
	}

	items := src.Extractor.Extract(doc, src, now)
	if n := src.limit(); len(items) > n {
		items = items[:n]
	}
	return items, nil
}
