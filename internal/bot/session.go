package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EgorLis/bmpresence/internal/bmapi"
	"github.com/EgorLis/bmpresence/internal/config"
	"github.com/EgorLis/bmpresence/internal/status"
)

// StatusSource - сторона BattleMetrics у сессии.
type StatusSource interface {
	Fetch(ctx context.Context, serverID string) (bmapi.Snapshot, error)
	ServerName(ctx context.Context, serverID string) (string, error)
}

// Presence - один залогиненный бот-аккаунт.
type Presence interface {
	Login(ctx context.Context) (user string, err error)
	SetCustomStatus(text string) error
	Close() error
}

// PresenceFactory создает (еще не подключенный) presence для acc. В log уже
// проставлены атрибуты сессии.
type PresenceFactory func(acc config.Account, log *slog.Logger) (Presence, error)

// faultReporter - presence, который сообщает о сбоях транспорта
// (discord.Client.OnFault).
type faultReporter interface {
	OnFault(fn func(kind string))
}

type State int32

const (
	StatePending State = iota
	StateLoggingIn
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoggingIn:
		return "logging_in"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Options struct {
	Interval      time.Duration
	Stagger       time.Duration
	LoginTimeout  time.Duration
	UpdateOnReady bool // первый тик сразу после логина, а не через интервал
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = config.DefaultInterval
	}
	if o.Stagger < 0 {
		o.Stagger = 0
	}
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = config.DefaultLoginTimeout
	}
	return o
}

// Stats - снимок счетчиков сессии.
type Stats struct {
	Ticks           int64
	FetchFailures   int64
	PublishFailures int64
	TransportFaults map[string]int64 // по виду сбоя
	LastPresence    string
	LastTick        time.Time
}

// Session владеет одним логином бота и его циклом обновления. С другими
// сессиями ничего не делит.
type Session struct {
	acc         config.Account
	src         StatusSource
	newPresence PresenceFactory
	opts        Options
	log         *slog.Logger

	state atomic.Int32

	mu    sync.Mutex
	name  string
	stats Stats
}

func newSession(acc config.Account, src StatusSource, factory PresenceFactory, opts Options, log *slog.Logger) *Session {
	if acc.MaxPlayers <= 0 {
		acc.MaxPlayers = config.DefaultMaxPlayers
	}
	return &Session{
		acc:         acc,
		src:         src,
		newPresence: factory,
		opts:        opts.withDefaults(),
		log:         log.With("slot", acc.Index, "server_id", acc.ServerID),
		name:        fallbackName(acc.ServerID),
	}
}

func fallbackName(serverID string) string { return "server " + serverID }

func (s *Session) Account() config.Account { return s.acc }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.log.Debug("session state", "from", prev, "to", st)
	}
}

// Name - имя сервера, либо "server <id>", пока (или если) поиск имени не
// удался.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	if s.stats.TransportFaults != nil {
		st.TransportFaults = make(map[string]int64, len(s.stats.TransportFaults))
		for k, v := range s.stats.TransportFaults {
			st.TransportFaults[k] = v
		}
	}
	return st
}

func (s *Session) countFault(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats.TransportFaults == nil {
		s.stats.TransportFaults = map[string]int64{}
	}
	s.stats.TransportFaults[kind]++
}

// run ведет сессию до отмены ctx или провала логина. delay - сдвиг старта
// этой сессии; до его истечения сеть не трогаем.
func (s *Session) run(ctx context.Context, delay time.Duration) {
	defer s.recoverFault("session", true)

	if !sleep(ctx, delay) {
		return
	}

	s.resolveName(ctx)
	log := s.log.With("server", s.Name())

	s.setState(StateLoggingIn)
	pub, err := s.newPresence(s.acc, log)
	if err != nil {
		s.setState(StateTerminated)
		log.Error("login failed", "err", err)
		return
	}
	if fr, ok := pub.(faultReporter); ok {
		fr.OnFault(s.countFault)
	}

	loginCtx, cancel := context.WithTimeout(ctx, s.opts.LoginTimeout)
	user, err := pub.Login(loginCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			s.setState(StateTerminated)
			log.Error("login failed", "err", err)
		}
		if err := pub.Close(); err != nil {
			log.Debug("close after failed login", "err", err)
		}
		return
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("close session", "err", err)
		}
	}()

	s.setState(StateActive)
	log.Info("logged in", "user", user, "interval", s.opts.Interval)
	s.loop(ctx, pub, log)
}

func (s *Session) resolveName(ctx context.Context) {
	name, err := s.src.ServerName(ctx, s.acc.ServerID)
	if err != nil {
		s.log.Warn("server name lookup failed", "err", err, "fallback", s.Name())
		return
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// loop гоняет тики по очереди в этой горутине: медленный тик откладывает
// следующий, а не накладывается на него. Тикер копит не больше одного тика.
func (s *Session) loop(ctx context.Context, pub Presence, log *slog.Logger) {
	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()

	if s.opts.UpdateOnReady {
		s.tick(ctx, pub, log)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx, pub, log)
		}
	}
}

// tick - один цикл fetch → format → publish.
func (s *Session) tick(ctx context.Context, pub Presence, log *slog.Logger) {
	defer s.recoverFault("tick", false)

	s.mu.Lock()
	s.stats.Ticks++
	s.stats.LastTick = time.Now()
	s.mu.Unlock()

	snap, err := s.src.Fetch(ctx, s.acc.ServerID)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		s.stats.FetchFailures++
		s.mu.Unlock()
		log.Warn("status fetch failed", "err", err)
		return
	}

	text := status.Format(snap, s.acc.MaxPlayers)
	log.Debug("server status", "status", snap.Status, "presence", text)

	if err := pub.SetCustomStatus(text); err != nil {
		s.mu.Lock()
		s.stats.PublishFailures++
		s.mu.Unlock()
		log.Warn("presence update failed", "err", err, "presence", text)
		return
	}

	s.mu.Lock()
	s.stats.LastPresence = text
	s.mu.Unlock()
}

// recoverFault не дает панике в сессии уронить процесс. Паника вне тика
// завершает сессию.
func (s *Session) recoverFault(where string, terminal bool) {
	if r := recover(); r != nil {
		s.log.Error("unhandled fault", "where", where, "panic", r, "stack", string(debug.Stack()))
		if terminal {
			s.setState(StateTerminated)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
