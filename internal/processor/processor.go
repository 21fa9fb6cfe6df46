package processor

import (
	"sort"
	"time"

	"github.com/LJTian/BreakingHub/internal/collector"
)

// MergedItem 合并去重后的快讯，按组合键全局唯一
type MergedItem = collector.RawItem

// SourceFailure 单个数据源在本轮刷新中的失败原因
type SourceFailure struct {
	SourceID string `json:"sourceId"`
	Error    string `json:"error"`
}

// Snapshot 一轮刷新的完整结果，整体替换上一轮，不做局部更新
type Snapshot struct {
	Items     []MergedItem    `json:"items"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Failures  []SourceFailure `json:"failures,omitempty"`
	// Err 不为空表示本轮刷新失败，Items 为空
	Err string `json:"error,omitempty"`
}

// IDs 返回快照中所有条目 ID
func (s *Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Items))
	for _, it := range s.Items {
		ids[it.ID] = struct{}{}
	}
	return ids
}

// SimpleProcessor 做合并、去重与按时间排序
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

// Process 按配置顺序展开各数据源结果，按组合键去重（先到先得），
// 再按发布时间倒序稳定排序。条目内容原样保留。
func (p *SimpleProcessor) Process(chunks [][]collector.RawItem) []MergedItem {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	out := make([]MergedItem, 0, total)
	seen := make(map[string]struct{}, total)

	for _, chunk := range chunks {
		for _, it := range chunk {
			key := dedupeKey(it)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, it)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

// dedupeKey = sourceId-(id 或 title)[-link]
func dedupeKey(it collector.RawItem) string {
	ident := it.ID
	if ident == "" {
		ident = it.Title
	}
	key := it.SourceID + "-" + ident
	if it.Link != "" {
		key += "-" + it.Link
	}
	return key
}
