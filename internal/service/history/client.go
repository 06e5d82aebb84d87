package history

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
	"SignalFeed/pkg/cache"
	xhttp "SignalFeed/pkg/http"
)

// Client fetches paginated signal history from the upstream REST backend.
// Pages are cached briefly, keyed by (scope, page), so a retry after a fetch
// error or a re-entered scope does not hammer the upstream.
type Client struct {
	http     *xhttp.Client
	baseURL  string
	token    string
	cache    cache.Service // nil disables caching
	cacheTTL time.Duration
}

type Option func(*Client)

// WithCache enables page caching with the given TTL.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(h *Client) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Client) {
		h.http = xhttp.NewClient(xhttp.WithTimeout(d))
	}
}

// New creates a history client for the given upstream base URL and bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		http:     xhttp.NewClient(),
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		cacheTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the upstream response shape:
// {"success":bool,"data":{"signals":[...],"hasMore":bool}}
type envelope struct {
	Success bool `json:"success"`
	Data    *struct {
		Signals []models.Signal `json:"signals"`
		HasMore bool            `json:"hasMore"`
	} `json:"data"`
}

// FetchPage requests one page of history for the given asset ids. Transport
// and status failures map to FetchError (retryable, page unchanged by the
// caller); an undecodable or unsuccessful payload maps to
// MalformedResponseError (caller stops pagination).
func (c *Client) FetchPage(ctx context.Context, assetIDs []string, page int) (*drepo.HistoryPage, error) {
	key := cache.GenerateKeyWithParams("signals", strings.Join(assetIDs, ","), page)

	if c.cache != nil {
		// Pages are cached as JSON strings so every cache tier handles them.
		var raw string
		if err := c.cache.Get(ctx, key, &raw); err == nil && raw != "" {
			var cached drepo.HistoryPage
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/signals",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.token,
		},
		QueryParams: map[string][]string{
			"assets": {strings.Join(assetIDs, ",")},
			"page":   {strconv.Itoa(page)},
		},
	}, &body)
	if err != nil {
		return nil, &models.FetchError{Page: page, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &models.MalformedResponseError{Detail: err.Error()}
	}
	if !env.Success || env.Data == nil {
		return nil, &models.MalformedResponseError{Detail: "success flag false or data missing"}
	}

	res := &drepo.HistoryPage{Signals: env.Data.Signals, HasMore: env.Data.HasMore}
	if c.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			_ = c.cache.Set(ctx, key, string(b), c.cacheTTL)
		}
	}
	return res, nil
}

var _ drepo.HistorySource = (*Client)(nil)
