package bible

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/starford/verbo/internal/models"
)

// Provider is the content source consumed by the reader session.
type Provider interface {
	Books(ctx context.Context, bibleID string) ([]models.Book, error)
	Chapters(ctx context.Context, bibleID, bookID string) ([]models.Chapter, error)
	Verses(ctx context.Context, bibleID, chapterID string) ([]models.Verse, error)
}

// Client is the HTTP client for the content API.
type Client struct {
	baseURL    string
	proxyURL   string // prefix; the target URL is appended query-escaped
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a content API client. proxyURL may be empty.
func NewClient(baseURL, proxyURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		proxyURL:   proxyURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// get fetches endpoint through the proxy first and falls back to the direct URL.
func get[T any](ctx context.Context, c *Client, endpoint string) (T, error) {
	full := c.baseURL + endpoint
	if c.proxyURL != "" {
		out, err := fetch[T](ctx, c, c.proxyURL+url.QueryEscape(full))
		if err == nil {
			return out, nil
		}
		c.logger.Warn("bible: proxy request failed, trying direct", slog.String("error", err.Error()))
	}
	return fetch[T](ctx, c, full)
}

func fetch[T any](ctx context.Context, c *Client, target string) (T, error) {
	var result T
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return result, err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, err
	}
	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("bible: HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("bible: decode: %w", err)
	}
	return result, nil
}

// Books returns the catalog of bibleID in canonical order.
func (c *Client) Books(ctx context.Context, bibleID string) ([]models.Book, error) {
	env, err := get[envelope[[]models.Book]](ctx, c, "/"+url.PathEscape(bibleID)+"/books")
	if err != nil {
		return nil, fmt.Errorf("bible: books: %w", err)
	}
	return env.Data, nil
}

// Chapters returns the chapters of bookID, without intro pseudo-chapters.
func (c *Client) Chapters(ctx context.Context, bibleID, bookID string) ([]models.Chapter, error) {
	env, err := get[envelope[[]models.Chapter]](ctx, c,
		"/"+url.PathEscape(bibleID)+"/books/"+url.PathEscape(bookID)+"/chapters")
	if err != nil {
		return nil, fmt.Errorf("bible: chapters: %w", err)
	}
	out := make([]models.Chapter, 0, len(env.Data))
	for _, ch := range env.Data {
		if ch.Number == "intro" {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// Verses returns the verses of chapterID parsed from the JSON content tree.
func (c *Client) Verses(ctx context.Context, bibleID, chapterID string) ([]models.Verse, error) {
	endpoint := "/" + url.PathEscape(bibleID) + "/chapters/" + url.PathEscape(chapterID) +
		"?content-type=json&include-notes=false&include-titles=false"
	env, err := get[envelope[chapterContent]](ctx, c, endpoint)
	if err != nil {
		return nil, fmt.Errorf("bible: verses: %w", err)
	}
	return ParseContent(chapterID, env.Data.Content), nil
}
