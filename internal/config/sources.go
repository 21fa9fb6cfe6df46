package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig 数据源覆盖项；未填写的字段沿用内置默认值
type SourceConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Limit     int    `yaml:"limit"`
	Extractor string `yaml:"extractor"`
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources 读取 yaml 数据源列表，文件中的 ${VAR} 会先做环境变量展开
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

func ParseSources(data []byte) ([]SourceConfig, error) {
	var f sourcesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	for i, s := range f.Sources {
		if s.ID == "" {
			return nil, fmt.Errorf("sources[%d]: id is required", i)
		}
		if s.Limit < 0 {
			return nil, fmt.Errorf("sources[%d]: limit must be positive", i)
		}
	}
	return f.Sources, nil
}
