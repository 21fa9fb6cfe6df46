// Package interaction 记录每条快讯的赞/踩与评论，整体持久化到一个 key。
package interaction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/BreakingHub/internal/prefs"
	"github.com/LJTian/BreakingHub/internal/storage"
	"github.com/google/uuid"
)

const (
	StorageKey  = "newsInteractions"
	MaxComments = 30
)

var (
	ErrLoginRequired   = errors.New("login required")
	ErrEmptyComment    = errors.New("comment text is empty")
	ErrInvalidVote     = errors.New("vote must be like or dislike")
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotAuthor       = errors.New("only the author can delete a comment")
)

type Vote string

const (
	Like    Vote = "like"
	Dislike Vote = "dislike"
)

// ParseVote 解析 like/dislike
func ParseVote(s string) (Vote, error) {
	switch v := Vote(strings.ToLower(strings.TrimSpace(s))); v {
	case Like, Dislike:
		return v, nil
	}
	return "", ErrInvalidVote
}

type Comment struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	// TS 毫秒时间戳
	TS       int64           `json:"ts"`
	Likes    int             `json:"likes"`
	Dislikes int             `json:"dislikes"`
	Voters   map[string]Vote `json:"voters,omitempty"`
}

// Record 一条快讯的互动数据，评论最新在前
type Record struct {
	Likes    int       `json:"likes"`
	Dislikes int       `json:"dislikes"`
	Comments []Comment `json:"comments"`
}

func (r *Record) clone() *Record {
	out := &Record{Likes: r.Likes, Dislikes: r.Dislikes, Comments: make([]Comment, len(r.Comments))}
	for i, c := range r.Comments {
		if c.Voters != nil {
			voters := make(map[string]Vote, len(c.Voters))
			for k, v := range c.Voters {
				voters[k] = v
			}
			c.Voters = voters
		}
		out.Comments[i] = c
	}
	return out
}

func (r *Record) findComment(id string) int {
	for i := range r.Comments {
		if r.Comments[i].ID == id {
			return i
		}
	}
	return -1
}

// Store 所有快讯的互动记录。
// 每次修改在同一把锁内完成内存更新与持久化，持久化失败时回滚。
type Store struct {
	mu      sync.Mutex
	kv      storage.KV
	records map[string]*Record

	now   func() time.Time
	newID func() string
}

// Load 从 kv 读取全部互动记录，缺失或损坏时从空开始
func Load(ctx context.Context, kv storage.KV) *Store {
	records := make(map[string]*Record)
	if !storage.LoadJSON(ctx, kv, StorageKey, &records) || records == nil {
		records = make(map[string]*Record)
	}
	for id, r := range records {
		if r == nil {
			delete(records, id)
		}
	}
	return &Store{
		kv:      kv,
		records: records,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Get 返回记录副本；不存在时返回零值记录，但不写入存储
func (s *Store) Get(itemID string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[itemID]; ok {
		return *r.clone()
	}
	return Record{Comments: []Comment{}}
}

// Len 已有记录的快讯数
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Vote 给快讯点赞或踩，不做每人一票的限制
func (s *Store) Vote(ctx context.Context, itemID string, v Vote) (Record, error) {
	if v != Like && v != Dislike {
		return Record{}, ErrInvalidVote
	}
	return s.mutate(ctx, itemID, func(r *Record) error {
		if v == Like {
			r.Likes++
		} else {
			r.Dislikes++
		}
		return nil
	})
}

// AddComment 在最前面插入评论，超过 MaxComments 时丢弃最旧的
func (s *Store) AddComment(ctx context.Context, itemID string, user *prefs.User, text string) (Record, error) {
	if user == nil {
		return s.Get(itemID), ErrLoginRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return s.Get(itemID), ErrEmptyComment
	}
	return s.mutate(ctx, itemID, func(r *Record) error {
		c := Comment{
			ID:         s.newID(),
			Text:       text,
			UserID:     user.ID,
			UserName:   user.Name,
			UserAvatar: user.Picture,
			TS:         s.now().UnixMilli(),
		}
		r.Comments = append([]Comment{c}, r.Comments...)
		if len(r.Comments) > MaxComments {
			r.Comments = r.Comments[:MaxComments]
		}
		return nil
	})
}

// DeleteComment 只有评论作者本人可以删除
func (s *Store) DeleteComment(ctx context.Context, itemID, commentID string, user *prefs.User) (Record, error) {
	if user == nil {
		return s.Get(itemID), ErrLoginRequired
	}
	return s.mutate(ctx, itemID, func(r *Record) error {
		i := r.findComment(commentID)
		if i < 0 {
			return ErrCommentNotFound
		}
		if r.Comments[i].UserID != user.ID {
			return ErrNotAuthor
		}
		r.Comments = append(r.Comments[:i], r.Comments[i+1:]...)
		return nil
	})
}

// VoteComment 每个用户对一条评论只保留一个选择，改选时两边计数同时调整，重复投票无效果
func (s *Store) VoteComment(ctx context.Context, itemID, commentID string, user *prefs.User, v Vote) (Record, error) {
	if user == nil {
		return s.Get(itemID), ErrLoginRequired
	}
	if v != Like && v != Dislike {
		return s.Get(itemID), ErrInvalidVote
	}
	return s.mutate(ctx, itemID, func(r *Record) error {
		i := r.findComment(commentID)
		if i < 0 {
			return ErrCommentNotFound
		}
		c := &r.Comments[i]
		prev := c.Voters[user.ID]
		if prev == v {
			return errNoChange
		}
		switch prev {
		case Like:
			c.Likes = max(0, c.Likes-1)
		case Dislike:
			c.Dislikes = max(0, c.Dislikes-1)
		}
		if v == Like {
			c.Likes++
		} else {
			c.Dislikes++
		}
		if c.Voters == nil {
			c.Voters = make(map[string]Vote)
		}
		c.Voters[user.ID] = v
		return nil
	})
}

// Prune 删除不在 keep 中的快讯记录，返回删除数量
func (s *Store) Prune(ctx context.Context, keep map[string]struct{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]*Record)
	for id, r := range s.records {
		if _, ok := keep[id]; !ok {
			removed[id] = r
			delete(s.records, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := storage.SaveJSON(ctx, s.kv, StorageKey, s.records); err != nil {
		for id, r := range removed {
			s.records[id] = r
		}
		return 0, err
	}
	return len(removed), nil
}

// errNoChange 修改函数判定无需写入
var errNoChange = errors.New("no change")

// mutate 在副本上执行 fn，持久化成功后才替换内存中的记录
func (s *Store) mutate(ctx context.Context, itemID string, fn func(r *Record) error) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[itemID]
	next := &Record{Comments: []Comment{}}
	if existed {
		next = prev.clone()
	}

	if err := fn(next); err != nil {
		if errors.Is(err, errNoChange) {
			return *next, nil
		}
		return *next, err
	}

	s.records[itemID] = next
	if err := storage.SaveJSON(ctx, s.kv, StorageKey, s.records); err != nil {
		if existed {
			s.records[itemID] = prev
		} else {
			delete(s.records, itemID)
		}
		return *prev.cloneOrZero(), err
	}
	return *next.clone(), nil
}

func (r *Record) cloneOrZero() *Record {
	if r == nil {
		return &Record{Comments: []Comment{}}
	}
	return r.clone()
}
