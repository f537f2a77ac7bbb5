// Package discord оборачивает сессию шлюза discordgo для бот-аккаунта, чья
// единственная задача - показывать кастомный статус.
//
// Клиент:
//   - идентифицируется без интентов (гильдии и сообщения не приходят);
//   - логинится одним блокирующим вызовом, который возвращается после READY
//     или по ctx (зависший дозвон рвется закрытием сокета);
//   - публикует presence как активность "Custom Status" (type 4);
//   - пишет в лог транспортные сбои (дисконнекты, rate limit) и отдает их в
//     OnFault; переподключается discordgo сам.
//
// Пример:
//
//	c, err := discord.New(token, discord.Options{Logger: log})
//	if err != nil { return err }
//	defer c.Close()
//	c.OnFault(func(kind string) { fmt.Println("fault:", kind) })
//
//	user, err := c.Login(ctx)
//	if err != nil { return err }
//	_ = c.SetCustomStatus("42/100 Sumari")
package discord
