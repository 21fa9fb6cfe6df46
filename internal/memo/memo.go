// Package memo 提供按 key 只执行一次的异步查询缓存。
// 同一个 key 的并发调用共享同一个 Future，结果（包括失败后的零值）永久保留。
package memo

import (
	"context"
	"log"
	"sync"
)

// Future 一次查询的结果，完成后 Done 关闭
type Future[V any] struct {
	done chan struct{}
	val  V
}

func (f *Future[V]) Done() <-chan struct{} {
	return f.done
}

// Value 等待结果或 ctx 结束；ctx 结束时返回零值与 ctx 错误，Future 本身不受影响
func (f *Future[V]) Value(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

type LookupFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*Future[V]
	lookup  LookupFunc[K, V]
}

func New[K comparable, V any](lookup LookupFunc[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*Future[V]),
		lookup:  lookup,
	}
}

// Start 返回 key 对应的 Future，不存在时创建并在后台执行查询。
// 查询与调用方的取消解耦，一个调用方放弃不会影响其他等待者。
func (c *Cache[K, V]) Start(ctx context.Context, key K) *Future[V] {
	c.mu.Lock()
	if f, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return f
	}
	f := &Future[V]{done: make(chan struct{})}
	c.entries[key] = f
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), key, f)
	return f
}

// Lookup 等待 key 的结果
func (c *Cache[K, V]) Lookup(ctx context.Context, key K) (V, error) {
	return c.Start(ctx, key).Value(ctx)
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[K, V]) run(ctx context.Context, key K, f *Future[V]) {
	defer close(f.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("memo: lookup %v panicked: %v", key, r)
		}
	}()

	v, err := c.lookup(ctx, key)
	if err != nil {
		log.Printf("memo: lookup %v failed: %v", key, err)
		return
	}
	f.val = v
}
