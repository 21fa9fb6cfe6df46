// Package prefs 保存本地身份（当前登录的昵称）和界面主题。
package prefs

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/LJTian/BreakingHub/internal/storage"
)

const (
	UserKey  = "newsCurrentUser"
	ThemeKey = "newsTheme"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

var ErrEmptyNickname = errors.New("nickname is required")

// User 本地身份，只凭昵称登录，没有密码
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Handle  string `json:"handle"`
	Picture string `json:"picture"`
}

// NewUser 按昵称构造用户，ID 大小写无关
func NewUser(nickname string) (*User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrEmptyNickname
	}
	return &User{
		ID:     "local:" + strings.ToLower(nickname),
		Name:   nickname,
		Handle: nickname,
	}, nil
}

type Preferences struct {
	mu    sync.RWMutex
	kv    storage.KV
	user  *User
	theme string
}

// Load 读取持久化的用户与主题，缺失或损坏时使用默认值
func Load(ctx context.Context, kv storage.KV) *Preferences {
	p := &Preferences{kv: kv, theme: ThemeLight}

	var u User
	if storage.LoadJSON(ctx, kv, UserKey, &u) && u.ID != "" {
		p.user = &u
	}

	var theme string
	if storage.LoadJSON(ctx, kv, ThemeKey, &theme) && validTheme(theme) {
		p.theme = theme
	}
	return p
}

// Current 当前用户，未登录返回 nil
func (p *Preferences) Current() *User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

// Login 用昵称登录并替换当前用户
func (p *Preferences) Login(ctx context.Context, nickname string) (*User, error) {
	u, err := NewUser(nickname)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := storage.SaveJSON(ctx, p.kv, UserKey, u); err != nil {
		return nil, err
	}
	p.user = u
	out := *u
	return &out, nil
}

func (p *Preferences) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.kv.Delete(ctx, UserKey); err != nil {
		return err
	}
	p.user = nil
	return nil
}

func (p *Preferences) Theme() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.theme
}

// ToggleTheme 在 light/dark 之间切换并返回新主题
func (p *Preferences) ToggleTheme(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := ThemeDark
	if p.theme == ThemeDark {
		next = ThemeLight
	}
	if err := storage.SaveJSON(ctx, p.kv, ThemeKey, next); err != nil {
		return p.theme, err
	}
	p.theme = next
	return next, nil
}

func validTheme(t string) bool {
	return t == ThemeLight || t == ThemeDark
}
