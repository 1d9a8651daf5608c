// Package importer は外部のRSS/Atomフィードから講座を一括登録する。
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/capacita/internal/model"
	"github.com/hitoshi/capacita/internal/security"
	"github.com/hitoshi/capacita/internal/validation"
	"github.com/mmcdole/gofeed"
)

const (
	defaultLimit   = 20
	maxTitleLen    = 200
	maxDescription = 500
	userAgent      = "Capacita/1.0 (+course importer)"
)

// CourseAdder は講座の一括追加インターフェース。
type CourseAdder interface {
	ValidatePage(page string) error
	AddMany(ctx context.Context, inputs []model.CourseInput) ([]model.Course, int, error)
}

// URLGuard は取得先URLの検証と安全なHTTPクライアントの生成を行う。
type URLGuard interface {
	Validate(rawURL string) error
	Client(timeout time.Duration) *http.Client
}

// MetricsRecorder はインポート件数の記録インターフェース。
type MetricsRecorder interface {
	RecordCoursesImported(n int)
}

// Request は POST /api/courses/import のリクエストボディ。
type Request struct {
	URL        string `json:"url" validate:"required,url"`
	Page       string `json:"page" validate:"required"`
	Category   string `json:"category" validate:"required,max=100"`
	ButtonText string `json:"buttonText" validate:"max=60"`
	Limit      int    `json:"limit" validate:"gte=0,lte=100"`
}

// Result はインポート結果。
type Result struct {
	Imported []model.Course `json:"imported"`
	Skipped  int            `json:"skipped"`
}

// Config はインポートの取得制限。
type Config struct {
	Timeout time.Duration
	MaxSize int64
}

// Service は講座インポートのサービス層。
type Service struct {
	courses   CourseAdder
	guard     URLGuard
	sanitizer *security.TextSanitizer
	validator *validation.Validator
	metrics   MetricsRecorder
	cfg       Config
}

// NewService は Service を生成する。
// guard が nil の場合はURL検証を行わず通常のHTTPクライアントを使う。
func NewService(courses CourseAdder, guard URLGuard, v *validation.Validator, metrics MetricsRecorder, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 5 << 20
	}
	return &Service{
		courses:   courses,
		guard:     guard,
		sanitizer: security.NewTextSanitizer(),
		validator: v,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Import はURLのフィード（またはHTMLページが参照するフィード）を取得し、
// 各記事を講座として追加する。リンクか画像のない記事、既存の courseUrl と重複する記事は追加しない。
func (s *Service) Import(ctx context.Context, req Request) (*Result, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.Page = strings.TrimSpace(req.Page)
	req.Category = strings.TrimSpace(req.Category)
	req.ButtonText = strings.TrimSpace(req.ButtonText)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := s.courses.ValidatePage(req.Page); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	feed, err := s.fetchFeed(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	inputs, skipped := s.toCourseInputs(feed, req, limit)
	added, dup, err := s.courses.AddMany(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("インポートした講座の保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCoursesImported(len(added))
	}
	slog.Info("courses imported",
		slog.String("source", req.URL),
		slog.String("page", req.Page),
		slog.Int("imported", len(added)),
		slog.Int("skipped", skipped+dup),
	)
	return &Result{Imported: added, Skipped: skipped + dup}, nil
}

// fetchFeed は rawURL を取得し、HTMLであれば代替リンクのフィードを辿ってパースする。
func (s *Service) fetchFeed(ctx context.Context, rawURL string) (*gofeed.Feed, error) {
	contentType, body, err := s.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if !isFeedResponse(contentType, body) {
		if !isHTMLResponse(contentType) {
			return nil, model.NewFeedNotDetectedError(rawURL)
		}
		page, err := url.Parse(rawURL)
		if err != nil {
			return nil, model.NewInvalidURLError(err.Error())
		}
		link, ok := bestFeedLink(findFeedLinks(body, page), page)
		if !ok {
			return nil, model.NewFeedNotDetectedError(rawURL)
		}
		if contentType, body, err = s.get(ctx, link.URL); err != nil {
			return nil, err
		}
		if !isFeedResponse(contentType, body) {
			return nil, model.NewFeedNotDetectedError(link.URL)
		}
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		slog.Warn("feed parse failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		return nil, model.NewParseFailedError()
	}
	return feed, nil
}

// get はURLを検証してから取得し、Content-Type と本文（最大 MaxSize バイト）を返す。
func (s *Service) get(ctx context.Context, rawURL string) (string, []byte, error) {
	client := &http.Client{Timeout: s.cfg.Timeout}
	if s.guard != nil {
		if err := s.guard.Validate(rawURL); err != nil {
			if errors.Is(err, security.ErrBlockedURL) {
				return "", nil, model.NewSSRFBlockedError()
			}
			return "", nil, model.NewInvalidURLError(err.Error())
		}
		client = s.guard.Client(s.cfg.Timeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.1")

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, model.NewFetchFailedError(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxSize))
	if err != nil {
		return "", nil, model.NewFetchFailedError(err.Error())
	}
	return resp.Header.Get("Content-Type"), body, nil
}

// toCourseInputs はフィードの記事を最大 limit 件まで講座入力に変換する。
// 変換できなかった記事の件数を合わせて返す。
func (s *Service) toCourseInputs(feed *gofeed.Feed, req Request, limit int) ([]model.CourseInput, int) {
	var feedImage string
	if feed.Image != nil {
		feedImage = feed.Image.URL
	}

	inputs := make([]model.CourseInput, 0, limit)
	skipped := 0
	for _, item := range feed.Items {
		if len(inputs) >= limit {
			break
		}
		if item == nil {
			continue
		}

		link := itemLink(item)
		image := itemImage(item)
		if image == "" {
			image = feedImage
		}
		title := s.sanitizer.PlainText(item.Title, maxTitleLen)
		if link == "" || image == "" || title == "" {
			skipped++
			continue
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		description := s.sanitizer.PlainText(desc, maxDescription)
		if description == "" {
			description = title
		}

		inputs = append(inputs, model.CourseInput{
			Title:       title,
			Category:    req.Category,
			Description: description,
			ImageURL:    image,
			CourseURL:   link,
			Page:        req.Page,
			ButtonText:  req.ButtonText,
		})
	}
	return inputs, skipped
}

func itemLink(item *gofeed.Item) string {
	if item.Link != "" {
		return strings.TrimSpace(item.Link)
	}
	if strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://") {
		return item.GUID
	}
	return ""
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}
