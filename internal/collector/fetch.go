package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	fetchMaxBodyBytes   = 4 << 20 // 4MB，快讯页不会更大
)

// ErrTimeout 单个请求超过 timeout 时返回（可用 errors.Is 判断）
var ErrTimeout = errors.New("fetch timeout")

// HTTPError 非 2xx 响应
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
}

// FetchFunc 抓取一个 URL 的文本内容，超时或非 2xx 返回错误。
// 调度层与缩略图查询都只依赖这个函数，便于测试时替换。
type FetchFunc func(ctx context.Context, url string, timeout time.Duration) (string, error)

// CollyFetcher 基于 colly 的默认抓取实现；配置了 ProxyBase 时通过代理转发
type CollyFetcher struct {
	UserAgent string
	// ProxyBase 形如 https://api.codetabs.com/v1/proxy?quest= ，目标地址会被 QueryEscape 后拼接
	ProxyBase string
}

func NewCollyFetcher(proxyBase string) *CollyFetcher {
	return &CollyFetcher{UserAgent: defaultUserAgent, ProxyBase: proxyBase}
}

func (f *CollyFetcher) Fetch(ctx context.Context, target string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	timeout, ok := requestTimeout(ctx, timeout, time.Now())
	if !ok {
		return "", fmt.Errorf("fetch %s: %w", target, ErrTimeout)
	}

	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	c := colly.NewCollector(
		colly.UserAgent(ua),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(fetchMaxBodyBytes),
	)
	c.SetRequestTimeout(timeout)
	c.WithTransport(&ctxTransport{ctx: ctx, base: http.DefaultTransport})

	var (
		body   []byte
		status int
	)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	if err := c.Visit(f.requestURL(target)); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", ctx.Err()
		}
		return "", classifyFetchError(target, timeout, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", &HTTPError{URL: target, Status: status}
	}
	return string(body), nil
}

// requestTimeout 取 timeout 与 ctx 剩余时间中较小的一个；
// 剩余时间已经用完时返回 false，避免把 0 传给 http.Client（0 表示不限时）
func requestTimeout(ctx context.Context, timeout time.Duration, now time.Time) (time.Duration, bool) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return 0, false
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	return timeout, true
}

// ctxTransport 让调用方的 ctx 取消能中断正在进行的请求，colly 本身不接收 ctx
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	// client 超时挂在 req 的 ctx 上，两者都要生效
	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(t.ctx, cancel)
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, release: func() { stop(); cancel() }}
	return resp, nil
}

// cancelBody 在读完 body 并关闭后释放 ctx
type cancelBody struct {
	io.ReadCloser
	release func()
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

func (f *CollyFetcher) requestURL(target string) string {
	if f.ProxyBase == "" {
		return target
	}
	return f.ProxyBase + url.QueryEscape(target)
}

func classifyFetchError(target string, timeout time.Duration, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("fetch %s after %s: %w", target, timeout, ErrTimeout)
	}
	return fmt.Errorf("fetch %s: %w", target, err)
}
