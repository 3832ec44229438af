// Package serper клиент поискового API Serper (google.serper.dev).
package serper

import (
	"context"
	"fmt"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/utils"
	"github.com/ilkoid/poncho-research/pkg/webclient"
)

// Client выполняет поисковые запросы.
type Client struct {
	endpoint string
	apiKey   string
	web      *webclient.Client
}

// NewFromConfig создаёт клиент из секции search.
func NewFromConfig(cfg config.SearchConfig, httpClient webclient.HTTPClient) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		web: webclient.New(webclient.Options{
			Service:    "search",
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			BurstLimit: cfg.BurstLimit,
			HTTPClient: httpClient,
		}),
	}
}

// Search отправляет {"q": query} и возвращает сырой JSON ответа.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	body, err := c.web.PostJSON(ctx, c.endpoint,
		map[string]string{"X-API-KEY": c.apiKey},
		map[string]string{"q": query})
	if err != nil {
		utils.Warn("Search request failed",
			"query", query,
			"error_type", webclient.TypeOf(err).String(),
			"error", err)
		return "", fmt.Errorf("search %q: %w", query, err)
	}

	utils.Debug("Search completed", "query", query, "bytes", len(body))
	return string(body), nil
}
