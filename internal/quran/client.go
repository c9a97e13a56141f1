package quran

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultBaseURL = "https://api.alquran.cloud/v1"

	// CanonicalTextEdition is the provider default served by /surah/{n}.
	CanonicalTextEdition = "quran-uthmani"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "tilawa"
)

// DefaultReciters is the curated allow-list of verse-by-verse reciters.
var DefaultReciters = []string{
	"ar.alafasy",
	"ar.abdulbasitmurattal",
	"ar.abdullahbasfar",
	"ar.ahmedajamy",
	"ar.hudhaify",
	"ar.mahermuaiqly",
	"ar.minshawi",
	"ar.saoodshuraym",
	"ar.sudais",
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Allowed restricts ListReciters. Nil means DefaultReciters.
	Allowed []string
}

// Client talks to the content provider. It neither caches nor retries.
type Client struct {
	client  *resty.Client
	allowed []string
}

// NewClient creates a client for the given options.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Allowed == nil {
		opts.Allowed = DefaultReciters
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": opts.UserAgent,
		})

	return &Client{
		client:  client,
		allowed: opts.Allowed,
	}
}

// ListChapters fetches all chapters.
func (c *Client) ListChapters(ctx context.Context) ([]Chapter, error) {
	return get[[]Chapter](ctx, c.client, "list chapters", "/surah", nil)
}

// ListReciters fetches the verse-by-verse audio editions and keeps only the
// allowed ones, in provider order.
func (c *Client) ListReciters(ctx context.Context) ([]Reciter, error) {
	all, err := get[[]Reciter](ctx, c.client, "list reciters", "/edition", map[string]string{
		"format":   "audio",
		"language": "ar",
		"type":     "versebyverse",
	})
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(r Reciter, _ int) bool {
		return lo.Contains(c.allowed, r.Identifier)
	}), nil
}

// ChapterContent fetches the canonical text and the reciter's audio for a
// chapter concurrently. Either both collections are returned or an error.
func (c *Client) ChapterContent(ctx context.Context, chapter int, reciter string) (ChapterContent, error) {
	var text, audio surahPayload

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		text, err = get[surahPayload](ctx, c.client, "get chapter text", fmt.Sprintf("/surah/%d", chapter), nil)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		audio, err = get[surahPayload](ctx, c.client, "get chapter audio", fmt.Sprintf("/surah/%d/%s", chapter, reciter), nil)
		return err
	})
	if err := p.Wait(); err != nil {
		return ChapterContent{}, err
	}

	return ChapterContent{
		Chapter: chapter,
		Reciter: reciter,
		Text:    text.Ayahs,
		Audio:   audio.Ayahs,
	}, nil
}

// Startup fetches the chapter list and the reciter list concurrently.
func (c *Client) Startup(ctx context.Context) (Catalog, error) {
	var cat Catalog

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		cat.Chapters, err = c.ListChapters(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		cat.Reciters, err = c.ListReciters(ctx)
		return err
	})
	if err := p.Wait(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

func get[T any](ctx context.Context, client *resty.Client, op, path string, query map[string]string) (T, error) {
	var zero T

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return zero, &FetchError{Op: op, URL: path, Err: err}
	}
	if !resp.IsSuccess() {
		return zero, &FetchError{Op: op, URL: path, Status: resp.StatusCode(), Err: errStatus}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return zero, &FetchError{Op: op, URL: path, Status: resp.StatusCode(), Err: fmt.Errorf("invalid response: %w", err)}
	}
	if env.Code != http.StatusOK {
		return zero, &FetchError{Op: op, URL: path, Status: resp.StatusCode(), Err: fmt.Errorf("%w: code %d %s", errEnvelope, env.Code, env.Status)}
	}

	var data T
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return zero, &FetchError{Op: op, URL: path, Status: resp.StatusCode(), Err: fmt.Errorf("invalid payload: %w", err)}
	}
	return data, nil
}
