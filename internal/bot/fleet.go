package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/EgorLis/bmpresence/internal/config"
)

// Fleet запускает по Session на каждый аккаунт и держит их порознь: сессия,
// которая не залогинилась или валит тики, на соседей не влияет.
type Fleet struct {
	src         StatusSource
	newPresence PresenceFactory
	opts        Options
	log         *slog.Logger

	mu       sync.Mutex
	sessions []*Session
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewFleet(src StatusSource, factory PresenceFactory, opts Options, log *slog.Logger) *Fleet {
	if log == nil {
		log = slog.Default()
	}
	return &Fleet{
		src:         src,
		newPresence: factory,
		opts:        opts.withDefaults(),
		log:         log,
	}
}

// Start проверяет все аккаунты и запускает сессии. Сессия i (с нуля)
// логинится не раньше чем через i × Stagger после Start. *config.Error
// значит, что не запущено ни одной сессии.
func (f *Fleet) Start(ctx context.Context, accounts []config.Account) error {
	if err := config.Validate(accounts); err != nil {
		return err
	}
	if f.src == nil || f.newPresence == nil {
		return errors.New("bot: fleet needs a status source and a presence factory")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return errors.New("bot: fleet already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	for i, acc := range accounts {
		s := newSession(acc, f.src, f.newPresence, f.opts, f.log)
		f.sessions = append(f.sessions, s)

		delay := time.Duration(i) * f.opts.Stagger
		f.log.Info("starting session", "slot", acc.Index, "server_id", acc.ServerID, "delay", delay)

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			s.run(ctx, delay)
		}()
	}
	return nil
}

// Sessions - сессии в порядке конфигурации.
func (f *Fleet) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Session, len(f.sessions))
	copy(out, f.sessions)
	return out
}

// Stop отменяет все сессии и ждет, пока они закроют логины.
func (f *Fleet) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

// Wait ждет завершения всех горутин сессий.
func (f *Fleet) Wait() { f.wg.Wait() }

// Summary - число сессий по состояниям.
func (f *Fleet) Summary() map[State]int {
	out := make(map[State]int, 4)
	for _, s := range f.Sessions() {
		out[s.State()]++
	}
	return out
}
