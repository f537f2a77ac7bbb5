package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
)

// ErrNotLoggedIn - SetCustomStatus до READY или пока шлюз отключен.
var ErrNotLoggedIn = errors.New("discord: session is not logged in")

// errAborted - дозвон к шлюзу после прерванного логина.
var errAborted = errors.New("discord: login aborted")

type LoginError struct {
	Err error
}

func (e *LoginError) Error() string { return "discord: login failed: " + e.Err.Error() }
func (e *LoginError) Unwrap() error { return e.Err }

type PublishError struct {
	Err error
}

func (e *PublishError) Error() string { return "discord: presence update failed: " + e.Err.Error() }
func (e *PublishError) Unwrap() error { return e.Err }

// Виды транспортных сбоев, которые получает OnFault.
const (
	FaultDisconnect = "disconnect"
	FaultRateLimit  = "rate_limit"
)

type Options struct {
	Dialer *websocket.Dialer // транспорт шлюза; nil - дефолт discordgo
	HTTP   *http.Client      // транспорт REST; nil - дефолт discordgo
	Logger *slog.Logger
}

// Client - один бот-аккаунт, подключенный к шлюзу Discord.
type Client struct {
	s   *discordgo.Session
	log *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
	active    atomic.Bool
	user      atomic.Pointer[string]

	// текущее сырое соединение шлюза; закрывается при прерывании логина
	connMu  sync.Mutex
	conn    net.Conn
	aborted bool

	removeHandlers []func()

	// Вызывается из горутин discordgo. Ставить до Login.
	onFault func(kind string)
}

// New готовит сессию шлюза для token. Ничего не дозванивается до Login.
func New(token string, opts Options) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &LoginError{Err: errors.New("empty token")}
	}
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}

	s, err := discordgo.New(token)
	if err != nil {
		return nil, &LoginError{Err: err}
	}
	// только presence, событий кроме READY не нужно
	s.Identify.Intents = discordgo.IntentsNone
	s.StateEnabled = false
	s.ShouldReconnectOnError = true
	s.LogLevel = discordgo.LogWarning
	if opts.HTTP != nil {
		s.Client = opts.HTTP
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		s:     s,
		log:   log,
		ready: make(chan struct{}),
	}

	base := opts.Dialer
	if base == nil {
		base = s.Dialer
	}
	if base == nil {
		base = websocket.DefaultDialer
	}
	s.Dialer = c.trackingDialer(base)

	c.removeHandlers = append(c.removeHandlers,
		s.AddHandler(c.onReady),
		s.AddHandler(c.onResumed),
		s.AddHandler(c.onDisconnect),
		s.AddHandler(c.onRateLimit),
	)
	return c, nil
}

// trackingDialer - копия base, которая запоминает каждое сырое соединение.
// Open у discordgo читает Hello без дедлайна и под своим локом, поэтому
// прервать его можно только закрыв сокет.
func (c *Client) trackingDialer(base *websocket.Dialer) *websocket.Dialer {
	d := *base
	dial := base.NetDialContext
	if dial == nil {
		if base.NetDial != nil {
			nd := base.NetDial
			dial = func(_ context.Context, network, addr string) (net.Conn, error) {
				return nd(network, addr)
			}
		} else {
			dial = (&net.Dialer{}).DialContext
		}
	}
	d.NetDial = nil
	d.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		c.connMu.Lock()
		defer c.connMu.Unlock()
		if c.aborted {
			_ = conn.Close()
			return nil, errAborted
		}
		c.conn = conn
		return conn, nil
	}
	return &d
}

// abort рвет текущее соединение и запрещает новые дозвоны.
func (c *Client) abort() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.aborted = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// OnFault задает колбэк транспортных сбоев (FaultDisconnect, FaultRateLimit).
func (c *Client) OnFault(fn func(kind string)) { c.onFault = fn }

func (c *Client) fault(kind string) {
	if c.onFault != nil {
		c.onFault(kind)
	}
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		tag := r.User.Username
		if r.User.Discriminator != "" && r.User.Discriminator != "0" {
			tag = fmt.Sprintf("%s#%s", r.User.Username, r.User.Discriminator)
		}
		c.user.Store(&tag)
	}
	c.active.Store(true)
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *Client) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	c.active.Store(true)
	c.log.Info("gateway resumed")
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.active.Store(false)
	c.log.Warn("gateway disconnected")
	c.fault(FaultDisconnect)
}

func (c *Client) onRateLimit(_ *discordgo.Session, rl *discordgo.RateLimit) {
	attrs := []any{"url", rl.URL}
	if rl.TooManyRequests != nil {
		attrs = append(attrs, "retry_after", rl.TooManyRequests.RetryAfter)
	}
	c.log.Warn("rate limited", attrs...)
	c.fault(FaultRateLimit)
}

// User - тег бота после READY.
func (c *Client) User() string {
	if p := c.user.Load(); p != nil {
		return *p
	}
	return ""
}

func (c *Client) IsActive() bool { return c.active.Load() }
