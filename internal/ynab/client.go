package ynab

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shaiso/ynab-portal/internal/telemetry"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL — адрес YNAB API v1.
	DefaultBaseURL = "https://api.ynab.com/v1"

	// DefaultRateLimit — лимит YNAB: 200 запросов в час на токен.
	DefaultRateLimit = 200

	// DefaultCacheTTL — время жизни закэшированного ответа.
	DefaultCacheTTL = time.Hour

	// cacheSize — число закэшированных ответов.
	cacheSize = 32

	// DefaultMaxResponseBody — максимальный размер тела ответа (50MB, выгрузка
	// транзакций за несколько лет бывает большой).
	DefaultMaxResponseBody = 50 << 20

	requestTimeout = 30 * time.Second
)

// Config — конфигурация клиента.
type Config struct {
	BaseURL  string
	Token    string
	BudgetID string

	// RateLimit — запросов в час. 0 означает DefaultRateLimit.
	RateLimit int
	// CacheTTL — TTL кэша ответов. 0 означает DefaultCacheTTL.
	CacheTTL time.Duration
	// MaxResponseBody — лимит тела ответа в байтах. 0 означает DefaultMaxResponseBody.
	MaxResponseBody int64

	HTTPClient *http.Client
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
}

// Client — клиент YNAB API.
type Client struct {
	baseURL  string
	token    string
	budgetID string

	http    *http.Client
	maxBody int64
	limiter *rate.Limiter
	cache   *expirable.LRU[string, []byte]
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New создаёт клиент.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = DefaultMaxResponseBody
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		budgetID: cfg.BudgetID,
		http:     cfg.HTTPClient,
		maxBody:  cfg.MaxResponseBody,
		limiter:  rate.NewLimiter(rate.Every(time.Hour/time.Duration(cfg.RateLimit)), cfg.RateLimit),
		cache:    expirable.NewLRU[string, []byte](cacheSize, nil, cfg.CacheTTL),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// BudgetID возвращает бюджет, с которым работает клиент.
func (c *Client) BudgetID() string {
	return c.budgetID
}

// Get выполняет GET для действия и возвращает тело ответа.
//
// Для delta-списков при knowledge > 0 к URL добавляется server_knowledge.
// Ответы остальных действий кэшируются.
func (c *Client) Get(ctx context.Context, action string, p RouteParams, knowledge int64) ([]byte, error) {
	if p.BudgetID == "" {
		p.BudgetID = c.budgetID
	}
	path, err := Route(action, p)
	if err != nil {
		return nil, err
	}

	delta := DeltaEligible(action)
	if delta && knowledge > 0 {
		path = WithServerKnowledge(path, knowledge)
	}

	url := c.baseURL + path
	if !delta {
		if body, ok := c.cache.Get(url); ok {
			c.logger.DebugContext(ctx, "ynab cache hit", "action", action)
			return body, nil
		}
	}

	body, err := c.do(ctx, action, url)
	if err != nil {
		return nil, err
	}
	if !delta {
		c.cache.Add(url, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, action, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ynab rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.metrics.IncYNABRequest(action, 0)
		return nil, fmt.Errorf("ynab request %s: %w", action, err)
	}
	defer resp.Body.Close()

	c.metrics.IncYNABRequest(action, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("ynab request %s: %w: more than %d bytes", action, ErrResponseTooLarge, c.maxBody)
	}

	c.logger.DebugContext(ctx, "ynab request",
		"action", action,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"bytes", len(body),
	)

	if resp.StatusCode >= 400 {
		return nil, parseError(resp.StatusCode, body)
	}
	return body, nil
}

// parseError извлекает {"error": {"id", "name", "detail"}} из ответа YNAB.
func parseError(status int, body []byte) error {
	e := gjson.GetManyBytes(body, "error.id", "error.name", "error.detail")
	return &APIError{
		Status: status,
		ID:     e[0].String(),
		Name:   e[1].String(),
		Detail: e[2].String(),
	}
}
