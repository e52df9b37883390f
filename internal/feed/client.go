// Package feed fetches the external posts shown on the dashboard.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-basico/internal/config"
	apperrors "github.com/spec-kit/crm-basico/pkg/util/errorutil"
)

const cacheKey = "posts"

// Post is a single item of the external feed.
type Post struct {
	UserID int    `json:"userId"`
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Client reads the feed through a breaker and an optional cache.
type Client struct {
	url      string
	timeout  time.Duration
	limit    int
	cacheTTL time.Duration
	cache    fiber.Storage
	breaker  *Breaker
	logger   *zap.Logger
}

// NewClient builds a client. cache may be nil.
func NewClient(cfg config.FeedConfig, cache fiber.Storage, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 3
	}
	return &Client{
		url:      cfg.URL,
		timeout:  cfg.Timeout(),
		limit:    limit,
		cacheTTL: cfg.CacheTTL(),
		cache:    cache,
		breaker:  NewBreaker(cfg.FailureThreshold, cfg.OpenTimeout()),
		logger:   logger,
	}
}

// Latest returns the first posts of the feed, or an empty list when the
// feed cannot be read for any reason.
func (c *Client) Latest(ctx context.Context) []Post {
	posts, err := c.Fetch(ctx)
	if err != nil {
		c.logger.Warn("external feed unavailable",
			zap.String("url", c.url),
			zap.String("breaker", c.breaker.State().String()),
			zap.Error(err))
		return []Post{}
	}
	return posts
}

// Fetch returns the first posts of the feed, served from cache when fresh.
func (c *Client) Fetch(ctx context.Context) ([]Post, error) {
	if posts, ok := c.cached(); ok {
		return posts, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewUpstreamError("feed request cancelled", err)
	}

	var body []byte
	err := c.breaker.Execute(func() error {
		var err error
		body, err = c.get(ctx)
		return err
	})
	if err != nil {
		return nil, apperrors.NewUpstreamError("feed unavailable", err)
	}

	var posts []Post
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, apperrors.NewUpstreamError("feed returned malformed JSON", err)
	}
	if len(posts) > c.limit {
		posts = posts[:c.limit]
	}
	c.store(posts)
	return posts, nil
}

type response struct {
	status int
	body   []byte
	errs   []error
}

// get issues the request with the configured timeout, shortened to the ctx
// deadline, and returns early when ctx is done.
func (c *Client) get(ctx context.Context) ([]byte, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, context.DeadlineExceeded
		}
		if left < timeout {
			timeout = left
		}
	}

	agent := fiber.Get(c.url)
	agent.Timeout(timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)

	done := make(chan response, 1)
	go func() {
		status, body, errs := agent.Bytes()
		done <- response{status: status, body: body, errs: errs}
	}()

	var res response
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}

	if len(res.errs) > 0 {
		return nil, errors.Join(res.errs...)
	}
	if res.status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", res.status)
	}
	return res.body, nil
}

func (c *Client) cached() ([]Post, bool) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := c.cache.Get(cacheKey)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var posts []Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, false
	}
	return posts, true
}

func (c *Client) store(posts []Post) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(posts)
	if err != nil {
		return
	}
	if err := c.cache.Set(cacheKey, raw, c.cacheTTL); err != nil {
		c.logger.Debug("feed cache write failed", zap.Error(err))
	}
}
