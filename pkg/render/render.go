// Package render получает отрендеренный HTML страницы через сервис
// headless-браузера (browserless): REST endpoint /content или прямое
// подключение к удалённому Chrome по DevTools протоколу.
package render

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/webclient"
)

// Renderer возвращает HTML документа по адресу страницы.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// NewFromConfig выбирает бэкенд по scrape.backend.
func NewFromConfig(cfg config.ScrapeConfig, httpClient webclient.HTTPClient) (Renderer, error) {
	switch cfg.Backend {
	case config.ScrapeBackendHTTP, "":
		return NewHTTPRenderer(cfg, httpClient), nil
	case config.ScrapeBackendCDP:
		return NewCDPRenderer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown scrape backend: %s", cfg.Backend)
	}
}

// withToken добавляет credential сервиса в query string.
func withToken(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse service url: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redactedError скрывает credentials сервиса в тексте ошибки.
// Unwrap сохраняет цепочку для errors.Is.
type redactedError struct {
	err     error
	secrets []string
}

func (e *redactedError) Error() string {
	msg := e.err.Error()
	for _, secret := range e.secrets {
		msg = strings.ReplaceAll(msg, secret, "redacted")
	}
	return msg
}

func (e *redactedError) Unwrap() error { return e.err }

// redact убирает из err token и значения параметров *token* и *key*
// из query строки serviceURL.
func redact(err error, serviceURL, token string) error {
	if err == nil {
		return nil
	}
	var secrets []string
	add := func(v string) {
		if v != "" {
			secrets = append(secrets, v, url.QueryEscape(v))
		}
	}
	add(token)
	if u, perr := url.Parse(serviceURL); perr == nil {
		for key, values := range u.Query() {
			name := strings.ToLower(key)
			if !strings.Contains(name, "token") && !strings.Contains(name, "key") {
				continue
			}
			for _, v := range values {
				add(v)
			}
		}
	}
	if len(secrets) == 0 {
		return err
	}
	return &redactedError{err: err, secrets: secrets}
}
