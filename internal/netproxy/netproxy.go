// Package netproxy пускает исходящий трафик (REST BattleMetrics, REST
// Discord и websocket шлюза Discord) через необязательный прокси.
//
// Схемы: http, https, socks5, socks5h. Пустой URL - прямое соединение.
package netproxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"
)

const dialTimeout = 10 * time.Second

type Route struct {
	url  *url.URL // nil - напрямую
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Parse строит маршрут из raw. Пустой raw - прямой маршрут.
func Parse(raw string) (*Route, error) {
	raw = strings.TrimSpace(raw)
	direct := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	if raw == "" {
		return &Route{dial: direct.DialContext}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy url %q: missing host", u.Redacted())
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return &Route{url: u, dial: direct.DialContext}, nil
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, direct)
		if err != nil {
			return nil, fmt.Errorf("proxy url %q: %w", u.Redacted(), err)
		}
		r := &Route{url: u}
		if cd, ok := d.(proxy.ContextDialer); ok {
			r.dial = cd.DialContext
		} else {
			r.dial = func(_ context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
		return r, nil
	default:
		return nil, fmt.Errorf("proxy url %q: unsupported scheme %q", u.Redacted(), u.Scheme)
	}
}

func (r *Route) Direct() bool { return r.url == nil }

// String можно писать в лог: логин и пароль замаскированы.
func (r *Route) String() string {
	if r.url == nil {
		return "direct"
	}
	return r.url.Redacted()
}

func (r *Route) httpProxy() func(*http.Request) (*url.URL, error) {
	if r.url == nil {
		return nil
	}
	switch strings.ToLower(r.url.Scheme) {
	case "http", "https":
		return http.ProxyURL(r.url)
	}
	return nil
}

func (r *Route) Transport() *http.Transport {
	return &http.Transport{
		Proxy:                 r.httpProxy(),
		DialContext:           r.dial,
		ForceAttemptHTTP2:     r.url == nil,
		MaxIdleConns:          32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

func (r *Route) HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Transport: r.Transport(), Timeout: timeout}
}

// Dialer - websocket-дайлер для шлюза Discord по тому же маршруту, что и
// HTTP-клиенты.
func (r *Route) Dialer() *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            r.httpProxy(),
		NetDialContext:   r.dial,
		HandshakeTimeout: 45 * time.Second,
	}
}
