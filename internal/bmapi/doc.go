// Package bmapi - небольшой клиент API серверов BattleMetrics. Запрашивает
// по одному серверу за раз и сводит ответ (у каждой игры свой) к Snapshot.
// Опрос по расписанию - забота вызывающего.
package bmapi
