// Package bot - связка bmapi, status и discord: держит по бот-аккаунту на
// каждый сервер BattleMetrics и показывает в статусе онлайн сервера.
//
// Session проходит pending → logging_in → active или заканчивается в
// terminated, если логин не удался или не уложился в LoginTimeout (повторов
// нет). В active раз в интервал идет тик: запросить сервер, собрать строку,
// опубликовать. Тики одной сессии не пересекаются; упавший fetch или publish
// пишется в лог, следующий тик идет как обычно.
//
// Fleet владеет всеми сессиями: заранее проверяет аккаунты, разносит логины
// по слотам, чтобы боты не идентифицировались одновременно, и изолирует
// сессии друг от друга.
//
// Пример:
//
//	f := bot.NewFleet(bm, factory, bot.Options{
//		Interval: 30 * time.Second,
//		Stagger:  5 * time.Second,
//	}, log)
//	if err := f.Start(ctx, cfg.Accounts); err != nil { return err }
//	<-ctx.Done()
//	f.Stop()
package bot
