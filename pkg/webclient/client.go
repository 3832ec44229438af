// Package webclient общий HTTP слой для внешних сервисов агента
// (поиск и рендеринг страниц): rate limiting, timeout одного вызова
// и классификация ошибок.
//
// Повторов нет: каждый вызов ограничен одним timeout.
package webclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrorType классифицирует сбой внешнего вызова.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrAuthFailed
	ErrTimeout
	ErrNetwork
	ErrRateLimit
	ErrServer
	ErrBadRequest
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrAuthFailed:
		return "authentication_failed"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrRateLimit:
		return "rate_limit"
	case ErrServer:
		return "server_error"
	case ErrBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Error сбой вызова с классификацией.
type Error struct {
	Type       ErrorType
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("%s returned HTTP %d (%s)", e.Service, e.StatusCode, e.Type)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Стандартный *http.Client реализует его, в тестах подменяется.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxErrorBody ограничивает фрагмент тела ответа в тексте ошибки.
const maxErrorBody = 300

// Options параметры клиента.
type Options struct {
	Service    string        // Имя сервиса для логов и ошибок
	Timeout    time.Duration // Timeout одного вызова
	RateLimit  int           // Запросов в минуту, 0 = без ограничения
	BurstLimit int
	HTTPClient HTTPClient // nil = http.Client без собственного timeout
}

// Client выполняет JSON POST запросы к одному сервису.
//
// Потокобезопасен, limiter разделяется между параллельными запросами.
type Client struct {
	service    string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient HTTPClient
}

// New создаёт клиент.
func New(opts Options) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.BurstLimit
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RateLimit)/60.0), burst)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		service:    opts.Service,
		timeout:    opts.Timeout,
		limiter:    limiter,
		httpClient: httpClient,
	}
}

// PostJSON отправляет payload как JSON и возвращает тело успешного ответа.
//
// Ожидание limiter входит в timeout вызова.
func (c *Client) PostJSON(ctx context.Context, endpoint string, headers map[string]string, payload any) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.classify(ctx, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", c.service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Type: ErrBadRequest, Service: c.service, Err: redactURLError(err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, err)
	}

	if resp.StatusCode >= 300 {
		return nil, &Error{
			Type:       statusType(resp.StatusCode),
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Body:       snippet(respBody),
		}
	}
	return respBody, nil
}

// classify превращает транспортную ошибку в *Error.
func (c *Client) classify(ctx context.Context, err error) error {
	errType := ErrNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		errType = ErrTimeout
	case errors.Is(err, context.Canceled):
		errType = ErrUnknown
	case errors.As(err, &netErr) && netErr.Timeout():
		errType = ErrTimeout
	}
	return &Error{Type: errType, Service: c.service, Err: redactURLError(err)}
}

// redactURLError скрывает значения query параметров в *url.Error:
// net/http печатает полный адрес запроса, а в нём бывают credentials.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = RedactURL(urlErr.URL)
	}
	return err
}

// RedactURL заменяет значения всех query параметров на "redacted",
// пароль userinfo скрывается через url.URL.Redacted.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "redacted")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

func statusType(code int) ErrorType {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuthFailed
	case code == http.StatusTooManyRequests:
		return ErrRateLimit
	case code >= 500:
		return ErrServer
	case code >= 400:
		return ErrBadRequest
	default:
		return ErrUnknown
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// TypeOf возвращает классификацию ошибки или ErrUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrUnknown
}
