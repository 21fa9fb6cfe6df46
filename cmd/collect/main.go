package main

import (
	"context"
	"log"

	"github.com/LJTian/BreakingHub/internal/collector"
	"github.com/LJTian/BreakingHub/internal/config"
	"github.com/LJTian/BreakingHub/internal/processor"
	"github.com/LJTian/BreakingHub/internal/scheduler"
	"github.com/LJTian/BreakingHub/internal/storage"
)

// 一个仅执行一次刷新的命令行入口：适合手动检查各数据源能否解析
func main() {
	cfg := config.Load()

	sources, err := collector.BuildSources(cfg.Sources)
	if err != nil {
		log.Fatalf("init sources failed: %v", err)
	}

	opts := scheduler.Options{
		Timeout:  cfg.FetchTimeout,
		Partial:  cfg.RefreshPartial,
		Location: cfg.Location(),
	}
	// 配置了 Redis 时把结果写入快照缓存，api 启动时可直接展示
	if cfg.PostgresDSN != "" && cfg.RedisAddr != "" {
		store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("init store failed: %v", err)
		}
		opts.Cache = store
	}

	fetcher := collector.NewCollyFetcher(cfg.ProxyBase)
	s, err := scheduler.New("", sources, fetcher.Fetch, processor.NewSimpleProcessor(), opts)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	snap, err := s.Refresh(context.Background())
	if err != nil {
		log.Fatalf("refresh failed: %v", err)
	}
	for _, f := range snap.Failures {
		log.Printf("source %s failed: %s", f.SourceID, f.Error)
	}
	for _, it := range snap.Items {
		log.Printf("[%s] %s %s %s", it.SourceID, it.PublishedAt.Format("2006-01-02 15:04"), it.Title, it.Link)
	}
	log.Printf("done, items=%d", len(snap.Items))
}
