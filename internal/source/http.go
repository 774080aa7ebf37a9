package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// StatusError is a non-2xx HTTP answer.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.URL)
}

// Fetcher performs browser-like HTTP requests against contest sites.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	MaxBody   int64
}

func (f *Fetcher) httpClient() *http.Client {
	if f != nil && f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: 20 * time.Second}
}

func (f *Fetcher) maxBody() int64 {
	if f != nil && f.MaxBody > 0 {
		return f.MaxBody
	}
	return 8 << 20
}

func (f *Fetcher) browserHeaders(req *http.Request, referer string) {
	ua := defaultUserAgent
	if f != nil && strings.TrimSpace(f.UserAgent) != "" {
		ua = f.UserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

func (f *Fetcher) do(ctx context.Context, method, url, referer string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	f.browserHeaders(req, referer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, f.maxBody()))
}

func (f *Fetcher) GetJSON(ctx context.Context, url, referer string, out any) error {
	raw, err := f.do(ctx, http.MethodGet, url, referer, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (f *Fetcher) PostJSON(ctx context.Context, url, referer string, body any, out any) error {
	raw, err := f.do(ctx, http.MethodPost, url, referer, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetPage returns the raw body of an HTML page.
func (f *Fetcher) GetPage(ctx context.Context, url, referer string) ([]byte, error) {
	return f.do(ctx, http.MethodGet, url, referer, nil)
}

// GetDocument fetches an HTML page and parses it.
func (f *Fetcher) GetDocument(ctx context.Context, url, referer string) (*goquery.Document, error) {
	raw, err := f.do(ctx, http.MethodGet, url, referer, nil)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(raw))
}
