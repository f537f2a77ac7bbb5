package discord

import "github.com/bwmarrin/discordgo"

// customStatus - presence с одной активностью "Custom Status". Для ботов
// Discord показывает State; Name заполняется для клиентов, которые читают его.
func customStatus(text string) discordgo.UpdateStatusData {
	return discordgo.UpdateStatusData{
		Status: string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{{
			Name:  text,
			State: text,
			Type:  discordgo.ActivityTypeCustom,
		}},
	}
}

// SetCustomStatus заменяет видимую активность аккаунта на text. Без повторов.
func (c *Client) SetCustomStatus(text string) error {
	if !c.active.Load() {
		return &PublishError{Err: ErrNotLoggedIn}
	}
	if err := c.s.UpdateStatusComplex(customStatus(text)); err != nil {
		return &PublishError{Err: err}
	}
	return nil
}
