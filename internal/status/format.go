// Package status превращает снимок BattleMetrics в текст статуса.
package status

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/EgorLis/bmpresence/internal/bmapi"
)

const (
	// MaxLen - максимальная длина кастомного статуса в Discord, в символах.
	MaxLen = 128

	Offline = "offline"
)

// Format собирает "{players}/{max}{+(queue)} {map}" или "offline".
// Если карта не найдена, в конце остается пробел.
func Format(s bmapi.Snapshot, maxPlayers int) string {
	if s.Status == bmapi.StatusOffline {
		return Offline
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(s.Players))
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(maxPlayers))
	if s.HasQueue {
		b.WriteString("+(")
		b.WriteString(strconv.Itoa(s.Queue))
		b.WriteByte(')')
	}
	b.WriteByte(' ')
	b.WriteString(s.Map)
	return Truncate(b.String(), MaxLen)
}

// Truncate обрезает text до n рун.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
