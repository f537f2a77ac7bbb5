package bmapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL - публичный API BattleMetrics.
const DefaultBaseURL = "https://api.battlemetrics.com"

// ErrNoAttributes - ответ разобрался, но в нем нет объекта data.attributes.
var ErrNoAttributes = errors.New("response has no data.attributes")

// Client ходит в эндпоинт серверов BattleMetrics. Состояния по серверам не
// хранит, поэтому один Client обслуживает все сессии сразу.
type Client struct {
	http  *http.Client
	base  string
	token string // необязательный, уходит как Bearer
}

type BMConf struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// ServerResponse - то, что мы читаем из GET /servers/{id}. attributes
// разбираются по полям отдельно (см. details.go).
type ServerResponse struct {
	Data *struct {
		ID         string          `json:"id"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

// FetchError оборачивает любую ошибку одного запроса к API.
type FetchError struct {
	ServerID   string
	StatusCode int // 0, если ответа не было
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bmapi: server %s: http %d: %v", e.ServerID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("bmapi: server %s: %v", e.ServerID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Создает новый клиент BM Api (base пустой - DefaultBaseURL, hc nil - клиент
// с таймаутом 10с)
func NewClient(hc *http.Client, base, token string) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		http:  hc,
		base:  base,
		token: strings.TrimSpace(token),
	}
}

// Создает клиент BM Api из конфигурации. Транспорт берется из hc (сам hc не
// меняется), conf.Timeout перекрывает hc.Timeout.
func NewClientFromConf(conf BMConf, hc *http.Client) *Client {
	var cp http.Client
	if hc != nil {
		cp = *hc
	}
	switch {
	case conf.Timeout > 0:
		cp.Timeout = conf.Timeout
	case cp.Timeout == 0:
		cp.Timeout = 10 * time.Second
	}
	return NewClient(&cp, conf.BaseURL, conf.Token)
}

// getServer делает GET /servers/{id} и возвращает data.attributes.
// Ошибкой считаются только транспорт, не-2xx, битый JSON и отсутствие
// attributes; типы отдельных полей проверяются позже.
func (c *Client) getServer(ctx context.Context, serverID string) (attributes, error) {
	endpoint := c.base + "/servers/" + url.PathEscape(serverID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return attributes{}, &FetchError{ServerID: serverID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return attributes{}, &FetchError{ServerID: serverID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return attributes{}, &FetchError{
			ServerID:   serverID,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var sr ServerResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return attributes{}, &FetchError{ServerID: serverID, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	if sr.Data == nil {
		return attributes{}, &FetchError{ServerID: serverID, StatusCode: resp.StatusCode, Err: ErrNoAttributes}
	}
	attrs, ok := decodeObject(sr.Data.Attributes)
	if !ok {
		return attributes{}, &FetchError{ServerID: serverID, StatusCode: resp.StatusCode, Err: ErrNoAttributes}
	}
	return attributes{attrs}, nil
}
