package collector

import (
	"fmt"
	"strings"

	"github.com/LJTian/BreakingHub/internal/config"
)

// extractors 按名称注册的页面抽取器，新增数据源时在这里加一行
var extractors = map[string]Extractor{
	"walla":  WallaExtractor{},
	"ynet":   YnetExtractor{},
	"maariv": MaarivExtractor{},
}

// LookupExtractor 按名称返回抽取器
func LookupExtractor(name string) (Extractor, bool) {
	e, ok := extractors[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// DefaultSources 内置的三个快讯源，顺序即合并时的顺序
func DefaultSources() []Source {
	return []Source{
		{ID: "walla", Name: "וואלה", URL: "https://news.walla.co.il/breaking", Limit: 12, Extractor: WallaExtractor{}},
		{ID: "ynet", Name: "ynet", URL: "https://www.ynet.co.il/news/category/184", Limit: 20, Extractor: YnetExtractor{}},
		{ID: "maariv", Name: "מעריב", URL: "https://www.maariv.co.il/breaking-news", Limit: 12, Extractor: MaarivExtractor{}},
	}
}

// BuildSources 用配置文件覆盖内置数据源；list 为空时返回内置列表。
// 配置里未写 extractor 时按 id 查找。
func BuildSources(list []config.SourceConfig) ([]Source, error) {
	if len(list) == 0 {
		return DefaultSources(), nil
	}

	defaults := make(map[string]Source)
	for _, s := range DefaultSources() {
		defaults[s.ID] = s
	}

	seen := make(map[string]struct{}, len(list))
	out := make([]Source, 0, len(list))
	for _, sc := range list {
		id := strings.TrimSpace(sc.ID)
		if id == "" {
			return nil, fmt.Errorf("source without id")
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate source id %q", id)
		}
		seen[id] = struct{}{}

		src := defaults[id]
		src.ID = id
		if sc.Name != "" {
			src.Name = sc.Name
		}
		if sc.URL != "" {
			src.URL = sc.URL
		}
		if sc.Limit > 0 {
			src.Limit = sc.Limit
		}
		name := sc.Extractor
		if name == "" {
			name = id
		}
		ex, ok := LookupExtractor(name)
		if !ok {
			return nil, fmt.Errorf("source %q: unknown extractor %q", id, name)
		}
		src.Extractor = ex
		if src.Name == "" {
			src.Name = id
		}
		if src.URL == "" {
			return nil, fmt.Errorf("source %q: url is required", id)
		}
		out = append(out, src)
	}
	return out, nil
}
