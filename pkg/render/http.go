package render

import (
	"context"
	"fmt"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/utils"
	"github.com/ilkoid/poncho-research/pkg/webclient"
)

// HTTPRenderer вызывает REST endpoint /content: POST {"url": ...},
// credential передаётся параметром token.
type HTTPRenderer struct {
	endpoint string
	token    string
	web      *webclient.Client
}

// NewHTTPRenderer создаёт рендерер для backend=http.
func NewHTTPRenderer(cfg config.ScrapeConfig, httpClient webclient.HTTPClient) *HTTPRenderer {
	return &HTTPRenderer{
		endpoint: cfg.Endpoint,
		token:    cfg.APIKey,
		web: webclient.New(webclient.Options{
			Service:    "render",
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			BurstLimit: cfg.BurstLimit,
			HTTPClient: httpClient,
		}),
	}
}

// Render возвращает HTML страницы pageURL.
func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	endpoint, err := withToken(r.endpoint, r.token)
	if err != nil {
		return "", redact(err, r.endpoint, r.token)
	}

	body, err := r.web.PostJSON(ctx, endpoint,
		map[string]string{"Cache-Control": "no-cache"},
		map[string]string{"url": pageURL})
	if err != nil {
		err = redact(err, r.endpoint, r.token)
		utils.Warn("Render request failed",
			"url", pageURL,
			"error_type", webclient.TypeOf(err).String(),
			"error", err)
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	utils.Debug("Page rendered", "url", pageURL, "bytes", len(body))
	return string(body), nil
}
