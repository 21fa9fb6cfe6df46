package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/BreakingHub/internal/collector"
	"github.com/LJTian/BreakingHub/internal/interaction"
	"github.com/LJTian/BreakingHub/internal/memo"
	"github.com/LJTian/BreakingHub/internal/prefs"
	"github.com/LJTian/BreakingHub/internal/processor"
	"github.com/gin-gonic/gin"
)

const thumbnailWait = 15 * time.Second

// Feed 当前快讯快照及手动刷新入口，由 scheduler 实现
type Feed interface {
	Sources() []collector.Source
	Snapshot() *processor.Snapshot
	Refresh(ctx context.Context) (*processor.Snapshot, error)
}

type Server struct {
	feed         Feed
	interactions *interaction.Store
	prefs        *prefs.Preferences
	thumbnails   *memo.Cache[string, string]
}

func NewServer(feed Feed, interactions *interaction.Store, p *prefs.Preferences, thumbnails *memo.Cache[string, string]) *Server {
	return &Server{
		feed:         feed,
		interactions: interactions,
		prefs:        p,
		thumbnails:   thumbnails,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sources", s.listSources)
		v1.GET("/news", s.listNews)
		v1.POST("/refresh", s.refresh)

		v1.GET("/news/:id/interactions", s.getInteractions)
		v1.POST("/news/:id/vote", s.vote)
		v1.POST("/news/:id/comments", s.addComment)
		v1.DELETE("/news/:id/comments/:commentId", s.deleteComment)
		v1.POST("/news/:id/comments/:commentId/vote", s.voteComment)

		v1.GET("/user", s.currentUser)
		v1.POST("/login", s.login)
		v1.POST("/logout", s.logout)
		v1.GET("/theme", s.theme)
		v1.POST("/theme/toggle", s.toggleTheme)

		v1.GET("/thumbnail", s.thumbnail)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

type sourceView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) listSources(c *gin.Context) {
	sources := s.feed.Sources()
	out := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		out = append(out, sourceView{ID: src.ID, Name: src.Name, URL: src.URL})
	}
	ok(c, out)
}

// newsView 快讯条目加上互动计数
type newsView struct {
	processor.MergedItem
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
	Comments int `json:"comments"`
}

type feedView struct {
	Items     []newsView                `json:"items"`
	UpdatedAt time.Time                 `json:"updatedAt"`
	Failures  []processor.SourceFailure `json:"failures,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

func (s *Server) buildFeed(snap *processor.Snapshot, selected map[string]bool) feedView {
	view := feedView{
		Items:     make([]newsView, 0, len(snap.Items)),
		UpdatedAt: snap.UpdatedAt,
		Failures:  snap.Failures,
		Error:     snap.Err,
	}
	for _, it := range snap.Items {
		if len(selected) > 0 && !selected[it.SourceID] {
			continue
		}
		rec := s.interactions.Get(it.ID)
		view.Items = append(view.Items, newsView{
			MergedItem: it,
			Likes:      rec.Likes,
			Dislikes:   rec.Dislikes,
			Comments:   len(rec.Comments),
		})
	}
	return view
}

// listNews 返回当前快照；source=a,b 只保留选中的数据源
func (s *Server) listNews(c *gin.Context) {
	selected := make(map[string]bool)
	for _, id := range strings.Split(c.Query("source"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			selected[id] = true
		}
	}
	ok(c, s.buildFeed(s.feed.Snapshot(), selected))
}

func (s *Server) refresh(c *gin.Context) {
	// 客户端断开不应让本轮刷新被取消
	ctx := context.WithoutCancel(c.Request.Context())
	snap, err := s.feed.Refresh(ctx)
	if err != nil {
		fail(c, http.StatusBadGateway, "refresh_failed", "failed to load breaking news, please try again shortly")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": fmt.Sprintf("loaded %d items", len(snap.Items)),
		"data":    s.buildFeed(snap, nil),
	})
}

func (s *Server) getInteractions(c *gin.Context) {
	ok(c, s.interactions.Get(c.Param("id")))
}

type voteRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	v, err := interaction.ParseVote(req.Direction)
	if err != nil {
		interactionError(c, err)
		return
	}
	rec, err := s.interactions.Vote(c.Request.Context(), c.Param("id"), v)
	if err != nil {
		interactionError(c, err)
		return
	}
	ok(c, rec)
}

type commentRequest struct {
	Text string `json:"text"`
}

func (s *Server) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	rec, err := s.interactions.AddComment(c.Request.Context(), c.Param("id"), s.prefs.Current(), req.Text)
	if err != nil {
		interactionError(c, err)
		return
	}
	ok(c, rec)
}

func (s *Server) deleteComment(c *gin.Context) {
	rec, err := s.interactions.DeleteComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), s.prefs.Current())
	if err != nil {
		interactionError(c, err)
		return
	}
	ok(c, rec)
}

func (s *Server) voteComment(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	v, err := interaction.ParseVote(req.Direction)
	if err != nil {
		interactionError(c, err)
		return
	}
	rec, err := s.interactions.VoteComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), s.prefs.Current(), v)
	if err != nil {
		interactionError(c, err)
		return
	}
	ok(c, rec)
}

func interactionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, interaction.ErrLoginRequired):
		fail(c, http.StatusUnauthorized, "login_required", err.Error())
	case errors.Is(err, interaction.ErrNotAuthor):
		fail(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, interaction.ErrCommentNotFound):
		fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, interaction.ErrEmptyComment), errors.Is(err, interaction.ErrInvalidVote):
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
	default:
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) currentUser(c *gin.Context) {
	ok(c, s.prefs.Current())
}

type loginRequest struct {
	Nickname string `json:"nickname"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	u, err := s.prefs.Login(c.Request.Context(), req.Nickname)
	if errors.Is(err, prefs.ErrEmptyNickname) {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, u)
}

func (s *Server) logout(c *gin.Context) {
	if err := s.prefs.Logout(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, nil)
}

func (s *Server) theme(c *gin.Context) {
	ok(c, gin.H{"theme": s.prefs.Theme()})
}

func (s *Server) toggleTheme(c *gin.Context) {
	theme, err := s.prefs.ToggleTheme(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, gin.H{"theme": theme})
}

// thumbnail 按标题查配图，结果按标题永久缓存；找不到时 url 为空
func (s *Server) thumbnail(c *gin.Context) {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		fail(c, http.StatusBadRequest, "bad_request", "title is required")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), thumbnailWait)
	defer cancel()
	u, err := s.thumbnails.Lookup(ctx, title)
	if err != nil {
		fail(c, http.StatusGatewayTimeout, "timeout", "thumbnail lookup timed out")
		return
	}
	ok(c, gin.H{"url": u})
}
