package main

import (
	"context"
	"log"
	"net/http"
	"path/filepath"

	"github.com/LJTian/BreakingHub/internal/api"
	"github.com/LJTian/BreakingHub/internal/collector"
	"github.com/LJTian/BreakingHub/internal/config"
	"github.com/LJTian/BreakingHub/internal/interaction"
	"github.com/LJTian/BreakingHub/internal/memo"
	"github.com/LJTian/BreakingHub/internal/prefs"
	"github.com/LJTian/BreakingHub/internal/processor"
	"github.com/LJTian/BreakingHub/internal/scheduler"
	"github.com/LJTian/BreakingHub/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// 未配置 Postgres 时互动、用户与主题只保存在内存中
	var (
		kv    storage.KV = storage.NewMemoryKV()
		cache scheduler.SnapshotCache
	)
	if cfg.PostgresDSN != "" {
		store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("init store failed: %v", err)
		}
		kv = store
		if store.Redis != nil {
			cache = store
		}
	} else {
		log.Println("warn: POSTGRES_DSN not set, using in-memory storage")
	}

	interactions := interaction.Load(ctx, kv)
	preferences := prefs.Load(ctx, kv)

	sources, err := collector.BuildSources(cfg.Sources)
	if err != nil {
		log.Fatalf("init sources failed: %v", err)
	}

	fetcher := collector.NewCollyFetcher(cfg.ProxyBase)

	opts := scheduler.Options{
		Timeout:  cfg.FetchTimeout,
		Partial:  cfg.RefreshPartial,
		Location: cfg.Location(),
		Cache:    cache,
	}
	if cfg.InteractionGC {
		opts.OnRefresh = func(ctx context.Context, snap *processor.Snapshot) {
			n, err := interactions.Prune(ctx, snap.IDs())
			if err != nil {
				log.Printf("interaction gc error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("interaction gc: removed %d records", n)
			}
		}
	}

	s, err := scheduler.New(cfg.CronSpec, sources, fetcher.Fetch, processor.NewSimpleProcessor(), opts)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	if s.Warm(ctx) {
		log.Println("loaded cached snapshot")
	}
	s.Start()
	defer s.Stop()

	thumbnails := memo.New(collector.NewThumbnailFinder(fetcher.Fetch).Find)

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(s, interactions, preferences, thumbnails)
	apiServer.RegisterRoutes(r)

	// 若配置了前端目录，则托管 SPA 静态文件并做 fallback
	if cfg.WebRoot != "" {
		assetsDir := filepath.Join(cfg.WebRoot, "assets")
		indexFile := filepath.Join(cfg.WebRoot, "index.html")
		r.Static("/assets", assetsDir)
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet {
				c.Status(http.StatusNotFound)
				return
			}
			// SPA：未匹配 API 的 GET 均返回 index.html
			c.File(indexFile)
		})
	}
	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
