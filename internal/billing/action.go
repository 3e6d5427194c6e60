// Package billing implements the per-user reading and billing state machine.
//
// A user is either idle or awaiting a value for one category. Actions decoded
// at the transport boundary are fed to Engine.Handle, which returns a tagged
// Outcome. User-correctable problems are reported as Rejected or Empty
// outcomes and never as Go errors.
package billing

import "meterbot/internal/core"

// ActionKind tags an inbound action.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionSelectCategory
	ActionSubmitValue
	ActionPreview
	ActionCalculate
	ActionHistory
	ActionStart
	ActionHelp
)

var actionNames = map[ActionKind]string{
	ActionUnknown:        "unknown",
	ActionSelectCategory: "select_category",
	ActionSubmitValue:    "submit_value",
	ActionPreview:        "preview",
	ActionCalculate:      "calculate",
	ActionHistory:        "history",
	ActionStart:          "start",
	ActionHelp:           "help",
}

func (k ActionKind) String() string {
	if s, ok := actionNames[k]; ok {
		return s
	}
	return "unknown"
}

// Action is a normalized user request.
type Action struct {
	Kind     ActionKind
	User     core.UserID
	Category core.Category // ActionSelectCategory
	Text     string        // ActionSubmitValue
}

func SelectCategory(u core.UserID, c core.Category) Action {
	return Action{Kind: ActionSelectCategory, User: u, Category: c}
}

func SubmitValue(u core.UserID, text string) Action {
	return Action{Kind: ActionSubmitValue, User: u, Text: text}
}

func Preview(u core.UserID) Action   { return Action{Kind: ActionPreview, User: u} }
func Calculate(u core.UserID) Action { return Action{Kind: ActionCalculate, User: u} }
func History(u core.UserID) Action   { return Action{Kind: ActionHistory, User: u} }
func Unknown(u core.UserID) Action   { return Action{Kind: ActionUnknown, User: u} }
func Start(u core.UserID) Action     { return Action{Kind: ActionStart, User: u} }
func Help(u core.UserID) Action      { return Action{Kind: ActionHelp, User: u} }

// navigates reports whether the action always drops a pending input prompt.
func (a Action) navigates() bool {
	switch a.Kind {
	case ActionSelectCategory, ActionPreview, ActionCalculate, ActionHistory:
		return true
	default:
		return false
	}
}
