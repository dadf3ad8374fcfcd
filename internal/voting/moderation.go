package voting

import (
	"reviewhub/internal/models"
	"reviewhub/internal/utils"
)

// Action is a moderation toggle.
type Action string

const (
	ActionPin    Action = "pin"
	ActionUnpin  Action = "unpin"
	ActionLock   Action = "lock"
	ActionUnlock Action = "unlock"
	ActionHide   Action = "hide"
)

// Flags are the moderation fields of a post.
type Flags struct {
	Pinned bool `json:"isPinned"`
	Locked bool `json:"isLocked"`
	Hidden bool `json:"isHidden"`
}

// FlagsOf reads the moderation fields off a post.
func FlagsOf(p *models.Post) Flags {
	return Flags{Pinned: p.IsPinned, Locked: p.IsLocked, Hidden: p.IsHidden}
}

// SetOn writes f back onto p.
func (f Flags) SetOn(p *models.Post) {
	p.IsPinned = f.Pinned
	p.IsLocked = f.Locked
	p.IsHidden = f.Hidden
}

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPin, ActionUnpin, ActionLock, ActionUnlock, ActionHide:
		return a, nil
	default:
		return "", utils.NewValidationError("action must be one of pin, unpin, lock, unlock, hide")
	}
}

// ApplyModeration sets the field an action names. Re-applying an action is a no-op.
func ApplyModeration(f Flags, a Action) (Flags, error) {
	switch a {
	case ActionPin:
		f.Pinned = true
	case ActionUnpin:
		f.Pinned = false
	case ActionLock:
		f.Locked = true
	case ActionUnlock:
		f.Locked = false
	case ActionHide:
		f.Hidden = true
	default:
		return f, utils.NewValidationError("unknown moderation action: " + string(a))
	}
	return f, nil
}

// CanModerate is the single capability check for moderation actions.
func CanModerate(u *models.User) bool {
	return u != nil && models.CanModerate(u.Role)
}
