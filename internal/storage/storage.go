package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/BreakingHub/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	snapshotCacheKey = "feed:snapshot"
	// 快照缓存只用于冷启动时先展示上一轮结果
	snapshotCacheTTL = 30 * time.Minute
)

// Entry 一个持久化 key 的整体 JSON 值（互动记录、当前用户、主题）
type Entry struct {
	Key       string         `gorm:"primaryKey;size:128" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb" json:"value"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (Entry) TableName() string {
	return "kv_entries"
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore 连接 Postgres，redisAddr 为空时不启用快照缓存
func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}

	s := &Store{DB: db}
	if redisAddr == "" {
		return s, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}
	s.Redis = rdb

	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(e.Value), nil
}

// Put 以 key 为幂等键整体覆盖
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	e := Entry{Key: key, Value: datatypes.JSON(value), UpdatedAt: time.Now()}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).Where("key = ?", key).Delete(&Entry{}).Error
}

// SaveSnapshot 缓存最近一次成功的刷新结果
func (s *Store) SaveSnapshot(ctx context.Context, snap *processor.Snapshot) error {
	if s.Redis == nil {
		return nil
	}
	bs, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.Redis.Set(ctx, snapshotCacheKey, bs, snapshotCacheTTL).Err()
}

// LoadSnapshot 读取缓存的快照，未命中返回 ErrNotFound
func (s *Store) LoadSnapshot(ctx context.Context) (*processor.Snapshot, error) {
	if s.Redis == nil {
		return nil, ErrNotFound
	}
	bs, err := s.Redis.Get(ctx, snapshotCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap processor.Snapshot
	if err := json.Unmarshal(bs, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
