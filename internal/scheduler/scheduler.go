package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/LJTian/BreakingHub/internal/collector"
	"github.com/LJTian/BreakingHub/internal/processor"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// SourceError 单个数据源抓取或解析失败
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// RefreshError 一轮刷新失败，列出失败的数据源
type RefreshError struct {
	Failures []*SourceError
}

func (e *RefreshError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "refresh failed: " + strings.Join(parts, "; ")
}

func (e *RefreshError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// SnapshotCache 上一轮成功快照的缓存，用于冷启动
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, snap *processor.Snapshot) error
	LoadSnapshot(ctx context.Context) (*processor.Snapshot, error)
}

type Options struct {
	// Timeout 单个数据源请求超时，默认 collector.DefaultFetchTimeout
	Timeout time.Duration
	// Partial 为 true 时某个数据源失败不影响其他数据源的结果
	Partial  bool
	Location *time.Location
	Cache    SnapshotCache
	// OnRefresh 每轮完全成功后调用
	OnRefresh func(ctx context.Context, snap *processor.Snapshot)
}

type Scheduler struct {
	cron      *cron.Cron
	sources   []collector.Source
	fetch     collector.FetchFunc
	processor *processor.SimpleProcessor
	opts      Options

	snap atomic.Pointer[processor.Snapshot]
	now  func() time.Time
}

// New 创建调度器；spec 为空时不注册定时任务，只能手动 Refresh
func New(spec string, sources []collector.Source, fetch collector.FetchFunc, p *processor.SimpleProcessor, opts Options) (*Scheduler, error) {
	if fetch == nil {
		return nil, errors.New("scheduler: fetch func is required")
	}
	if p == nil {
		p = processor.NewSimpleProcessor()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = collector.DefaultFetchTimeout
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		sources:   sources,
		fetch:     fetch,
		processor: p,
		opts:      opts,
		now:       func() time.Time { return time.Now().In(loc) },
	}

	if spec != "" {
		if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start 启动定时任务并立即执行首轮刷新
func (s *Scheduler) Start() {
	s.cron.Start()
	go s.runOnce()
}

// Stop 停止定时任务，等待正在执行的刷新结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log.Println("start refresh job...")
	snap, err := s.Refresh(context.Background())
	if err != nil {
		log.Printf("refresh job failed: %v", err)
		return
	}
	log.Printf("refresh job done, items=%d failures=%d", len(snap.Items), len(snap.Failures))
}

// Sources 返回配置的数据源（副本）
func (s *Scheduler) Sources() []collector.Source {
	return append([]collector.Source(nil), s.sources...)
}

// Snapshot 当前发布的快照，从未刷新过时返回空快照
func (s *Scheduler) Snapshot() *processor.Snapshot {
	if snap := s.snap.Load(); snap != nil {
		return snap
	}
	return &processor.Snapshot{}
}

// Warm 从缓存加载上一轮快照，仅在尚未发布任何快照时生效
func (s *Scheduler) Warm(ctx context.Context) bool {
	if s.opts.Cache == nil {
		return false
	}
	snap, err := s.opts.Cache.LoadSnapshot(ctx)
	if err != nil || snap == nil {
		return false
	}
	snap.Err = ""
	return s.snap.CompareAndSwap(nil, snap)
}

// Refresh 并发抓取所有数据源，合并去重排序后整体替换当前快照。
// 默认任一数据源失败即整轮失败，发布带错误的空快照；
// Partial 模式下只有全部失败才返回错误。
// 多个 Refresh 重叠时以最后完成的为准。
func (s *Scheduler) Refresh(ctx context.Context) (*processor.Snapshot, error) {
	now := s.now()
	results := make([][]collector.RawItem, len(s.sources))
	errs := make([]error, len(s.sources))

	var g *errgroup.Group
	gctx := ctx
	if s.opts.Partial {
		g = &errgroup.Group{}
	} else {
		g, gctx = errgroup.WithContext(ctx)
	}

	for i, src := range s.sources {
		g.Go(func() error {
			items, err := s.fetchSource(gctx, src, now)
			if err != nil {
				errs[i] = err
				return err
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	failures := s.collectFailures(ctx, errs)

	if len(failures) > 0 && (!s.opts.Partial || len(failures) == len(s.sources)) {
		rerr := &RefreshError{Failures: failures}
		snap := &processor.Snapshot{UpdatedAt: now, Err: rerr.Error()}
		s.snap.Store(snap)
		return snap, rerr
	}

	snap := &processor.Snapshot{
		Items:     s.processor.Process(results),
		UpdatedAt: now,
	}
	for _, f := range failures {
		snap.Failures = append(snap.Failures, processor.SourceFailure{SourceID: f.SourceID, Error: f.Err.Error()})
	}
	s.snap.Store(snap)

	if len(snap.Failures) == 0 {
		if s.opts.Cache != nil {
			if err := s.opts.Cache.SaveSnapshot(ctx, snap); err != nil {
				log.Printf("refresh: cache snapshot error: %v", err)
			}
		}
		if s.opts.OnRefresh != nil {
			s.opts.OnRefresh(ctx, snap)
		}
	}
	return snap, nil
}

// collectFailures 过滤掉因其他数据源失败而被取消的请求
func (s *Scheduler) collectFailures(ctx context.Context, errs []error) []*SourceError {
	var failures []*SourceError
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			continue
		}
		var se *SourceError
		if !errors.As(err, &se) {
			se = &SourceError{SourceID: s.sources[i].ID, Err: err}
		}
		failures = append(failures, se)
	}
	return failures
}

func (s *Scheduler) fetchSource(ctx context.Context, src collector.Source, now time.Time) ([]collector.RawItem, error) {
	html, err := s.fetch(ctx, src.URL, s.opts.Timeout)
	if err != nil {
		log.Printf("fetch %s error: %v", src.ID, err)
		return nil, &SourceError{SourceID: src.ID, Err: err}
	}
	items, err := collector.ExtractItems(html, src, now)
	if err != nil {
		log.Printf("extract %s error: %v", src.ID, err)
		return nil, &SourceError{SourceID: src.ID, Err: err}
	}
	if len(items) == 0 {
		log.Printf("fetch %s got 0 items", src.ID)
	}
	return items, nil
}
