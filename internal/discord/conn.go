package discord

import (
	"context"
	"errors"
)

// Login открывает шлюз и ждет READY. При ошибке или отмене ctx соединение
// рвется и возвращается *LoginError; клиент после этого не переиспользуется.
// Возврат по ctx не ждет, пока discordgo доделает Open.
func (c *Client) Login(ctx context.Context) (string, error) {
	opened := make(chan error, 1)
	go func() { opened <- c.s.Open() }()

	select {
	case err := <-opened:
		if err != nil {
			c.abort()
			_ = c.s.Close()
			return "", &LoginError{Err: err}
		}
	case <-ctx.Done():
		c.abort()
		go func() {
			<-opened
			_ = c.s.Close()
		}()
		return "", &LoginError{Err: ctx.Err()}
	}

	select {
	case <-c.ready:
		return c.User(), nil
	case <-ctx.Done():
		c.abort()
		_ = c.s.Close()
		return "", &LoginError{Err: errors.Join(errors.New("no READY from gateway"), ctx.Err())}
	}
}

// Close рвет соединение со шлюзом и снимает обработчики событий. Сначала
// закрывается сырой сокет, чтобы зависший Open отпустил лок сессии.
func (c *Client) Close() error {
	c.active.Store(false)
	c.abort()
	for _, remove := range c.removeHandlers {
		remove()
	}
	c.removeHandlers = nil
	return c.s.Close()
}
