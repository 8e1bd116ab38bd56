// Package preview извлекает из страницы по ссылке главное изображение и заголовок.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ButyrinIA/comet/internal/logger"
	"github.com/ButyrinIA/comet/internal/metrics"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 3 * time.Second
	maxPageBytes   = 2 << 20
	userAgent      = "Mozilla/5.0 (compatible; CometBot/1.0; +https://comet.chat)"
)

type Result struct {
	LeadImageURL string
	Domain       string
}

// Fetcher никогда не возвращает ошибку: при любом сбое результат пустой
type Fetcher interface {
	Fetch(ctx context.Context, link string) Result
}

type HTMLFetcher struct {
	client  *http.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewHTMLFetcher(client *http.Client, timeout time.Duration, log *zap.Logger) *HTMLFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTMLFetcher{client: client, timeout: timeout, log: logger.OrDefault(log)}
}

// Fetch ограничен таймаутом; по его истечении возвращается пустой результат
func (f *HTMLFetcher) Fetch(ctx context.Context, link string) Result {
	res := Result{Domain: Domain(link)}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	image, err := f.leadImage(ctx, link)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.PreviewFallbacks.WithLabelValues(reason).Inc()
		f.log.Debug("link preview failed", zap.String("link", link), zap.String("reason", reason), zap.Error(err))
		return res
	}
	if image == "" {
		metrics.PreviewFallbacks.WithLabelValues("no_image").Inc()
	}
	res.LeadImageURL = image
	return res
}

// Title возвращает заголовок страницы или пустую строку при любом сбое
func (f *HTMLFetcher) Title(ctx context.Context, link string) string {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	doc, _, err := f.page(ctx, link)
	if err != nil {
		f.log.Debug("page title lookup failed", zap.String("link", link), zap.Error(err))
		return ""
	}
	return findTitle(doc)
}

func (f *HTMLFetcher) leadImage(ctx context.Context, link string) (string, error) {
	doc, base, err := f.page(ctx, link)
	if err != nil {
		return "", err
	}
	return resolve(base, findImage(doc)), nil
}

// page загружает и разбирает страницу; второе значение - итоговый адрес после редиректов
func (f *HTMLFetcher) page(ctx context.Context, link string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, resp.Request.URL, nil
}

func findTitle(doc *goquery.Document) string {
	if title := strings.Join(strings.Fields(doc.Find("head title").First().Text()), " "); title != "" {
		return title
	}
	if v, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func findImage(doc *goquery.Document) string {
	selectors := []struct{ query, attr string }{
		{`meta[property="og:image:secure_url"]`, "content"},
		{`meta[property="og:image"]`, "content"},
		{`meta[name="twitter:image"]`, "content"},
		{`meta[name="twitter:image:src"]`, "content"},
		{`link[rel="image_src"]`, "href"},
	}
	for _, s := range selectors {
		if v, ok := doc.Find(s.query).First().Attr(s.attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// resolve приводит относительный адрес картинки к абсолютному
func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
