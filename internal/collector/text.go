package collector

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	spaceRun        = regexp.MustCompile(`\s+`)
	leadingClutter  = regexp.MustCompile(`^[/\s-]+`)
	futureTolerance = 12 * time.Hour
)

// descriptionMaxRunes 描述（目前只有记者名）的长度上限
const descriptionMaxRunes = 200

// CleanupHeadline 合并连续空白、去掉开头的斜杠/横线，再做 trim
func CleanupHeadline(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	s = leadingClutter.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// AbsoluteURL 以 base 解析相对链接；为空或无法解析时返回 base
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return base
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base
	}
	return b.ResolveReference(ref).String()
}

// ParseClock 解析 "HH:MM"，失败时 ok=false
func ParseClock(text string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(text), ":")
	if !found {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(strings.TrimSpace(m))
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ResolveClock 把只有时分的时间补全为 now 所在的日期。
// 若结果比 now 晚 12 小时以上，视为前一天发布（例如凌晨浏览昨晚的快讯）。
// 文本不可用时返回 now。
func ResolveClock(text string, now time.Time) time.Time {
	hour, minute, ok := ParseClock(text)
	if !ok {
		return now
	}
	guess := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if guess.Sub(now) > futureTolerance {
		guess = guess.AddDate(0, 0, -1)
	}
	return guess
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDatetime 解析 <time datetime> 中的机器可读时间，没有时区的按 now 的时区处理
func ParseDatetime(attr string, now time.Time) (time.Time, bool) {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, attr, now.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ItemID 由组合字段生成确定性的 ID（sha1 十六进制），刷新前后保持一致
func ItemID(parts ...string) string {
	h := sha1.New()
	h.Write([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(h.Sum(nil))
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// truncateRunes 按 rune 截断，超出时追加省略号
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
