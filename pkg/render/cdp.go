package render

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// closeTimeout ограничивает закрытие вкладки и соединения после рендеринга.
const closeTimeout = 5 * time.Second

// CDPRenderer открывает страницу в удалённом Chrome (например,
// wss://chrome.browserless.io?token=...) и забирает итоговый DOM.
//
// Каждый вызов использует своё соединение, поэтому параллельные
// запросы не делят состояние браузера.
type CDPRenderer struct {
	controlURL string
	token      string
	timeout    time.Duration
}

// NewCDPRenderer создаёт рендерер для backend=cdp.
func NewCDPRenderer(cfg config.ScrapeConfig) *CDPRenderer {
	return &CDPRenderer{
		controlURL: cfg.CDPURL,
		token:      cfg.APIKey,
		timeout:    cfg.Timeout,
	}
}

// Render возвращает HTML страницы pageURL после события load.
//
// Ошибки rod содержат адрес подключения, поэтому token вычищается.
func (r *CDPRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	html, err := r.render(ctx, pageURL)
	if err != nil {
		return "", redact(err, r.controlURL, r.token)
	}
	return html, nil
}

func (r *CDPRenderer) render(ctx context.Context, pageURL string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	// Пустой ControlURL заставил бы rod запускать локальный браузер
	if r.controlURL == "" {
		return "", fmt.Errorf("cdp control url is not configured")
	}

	controlURL, err := withToken(r.controlURL, r.token)
	if err != nil {
		return "", err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect to browser: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := browser.Context(closeCtx).Close(); err != nil {
			utils.Debug("Browser close failed", "error", err)
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("open page %s: %w", pageURL, err)
	}

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", pageURL, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read html %s: %w", pageURL, err)
	}

	utils.Debug("Page rendered via CDP", "url", pageURL, "bytes", len(html))
	return html, nil
}
