package bmapi

import (
	"context"
	"errors"
	"strings"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusOnline
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Snapshot - нормализованный результат одного запроса статуса.
type Snapshot struct {
	ServerID string
	Name     string
	Status   Status
	Players  int

	Map    string // пусто, если ни одного поля карты нет
	HasMap bool

	Queue    int
	HasQueue bool
}

// Fetch делает один запрос по serverID и нормализует ответ. Поля разбираются
// по отдельности: поле с неожиданным типом считается отсутствующим и не
// валит весь запрос. Повторов нет, состояния между вызовами тоже.
func (c *Client) Fetch(ctx context.Context, serverID string) (Snapshot, error) {
	attrs, err := c.getServer(ctx, serverID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		ServerID: serverID,
		Name:     attrs.name(),
		Status:   parseStatus(attrs.status()),
		Players:  attrs.players(),
	}
	snap.Map, snap.HasMap = attrs.firstString(mapFields)
	snap.Queue, snap.HasQueue = attrs.integer(queueField)
	if snap.Queue < 0 {
		snap.Queue, snap.HasQueue = 0, false
	}
	return snap, nil
}

// ServerName возвращает отображаемое имя сервера.
func (c *Client) ServerName(ctx context.Context, serverID string) (string, error) {
	attrs, err := c.getServer(ctx, serverID)
	if err != nil {
		return "", err
	}
	name := attrs.name()
	if name == "" {
		return "", &FetchError{ServerID: serverID, Err: errors.New("server has no name")}
	}
	return name, nil
}

// "dead" BattleMetrics отдает для серверов, которых давно не видно.
func parseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return StatusUnknown
	case "offline", "dead":
		return StatusOffline
	default:
		return StatusOnline
	}
}
