// Package bot translates between chat text and billing actions.
package bot

import (
	"strings"

	"meterbot/internal/billing"
	"meterbot/internal/core"
)

// Button labels of the reply keyboard.
const (
	ButtonWater     = "📊 Water"
	ButtonDay       = "⚡ Day"
	ButtonNight     = "⚡ Night"
	ButtonGas       = "🔥 Gas"
	ButtonPreview   = "👀 Preview"
	ButtonCalculate = "💰 Calculate"
	ButtonHistory   = "📜 History"

	CommandStart = "/start"
	CommandHelp  = "/help"
)

var categoryButtons = map[string]core.Category{
	ButtonWater: core.Water,
	ButtonDay:   core.ElectricityDay,
	ButtonNight: core.ElectricityNight,
	ButtonGas:   core.Gas,
}

// Label returns the button label of a category.
func Label(c core.Category) string {
	for label, cat := range categoryButtons {
		if cat == c {
			return label
		}
	}
	return string(c)
}

// Decode maps a chat message onto an action. Free text is treated as a
// meter value only while the user is awaiting one.
func Decode(u core.UserID, text string, awaiting bool) billing.Action {
	t := strings.TrimSpace(text)

	if c, ok := categoryButtons[t]; ok {
		return billing.SelectCategory(u, c)
	}

	switch t {
	case ButtonPreview:
		return billing.Preview(u)
	case ButtonCalculate:
		return billing.Calculate(u)
	case ButtonHistory:
		return billing.History(u)
	}

	if strings.HasPrefix(t, "/") {
		cmd := strings.Fields(t)[0]
		// Telegram appends the bot name in group chats: /start@meterbot
		if i := strings.IndexByte(cmd, '@'); i > 0 {
			cmd = cmd[:i]
		}
		switch cmd {
		case CommandStart:
			return billing.Start(u)
		case CommandHelp:
			return billing.Help(u)
		default:
			return billing.Unknown(u)
		}
	}

	if awaiting {
		return billing.SubmitValue(u, t)
	}
	return billing.Unknown(u)
}

// Keyboard returns the rows of the reply keyboard.
func Keyboard() [][]string {
	return [][]string{
		{ButtonWater},
		{ButtonDay, ButtonNight},
		{ButtonGas},
		{ButtonPreview, ButtonCalculate},
		{ButtonHistory},
	}
}
