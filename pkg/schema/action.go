package schema

// Action selects the behavior of an outreach-capable stage. It is a
// closed enum; dispatch over it must be exhaustive.
type Action string

const (
	ActionDraftWrite   Action = "draft_write"
	ActionDraftRewrite Action = "draft_rewrite"
	ActionSend         Action = "send"
	ActionClose        Action = "close"
)

// Actions lists every defined action.
var Actions = []Action{ActionDraftWrite, ActionDraftRewrite, ActionSend, ActionClose}

// ParseAction converts a wire string into an Action. An empty string
// defaults to draft_write, matching the pipeline's entry behavior.
func ParseAction(s string) (Action, error) {
	if s == "" {
		return ActionDraftWrite, nil
	}
	a := Action(s)
	switch a {
	case ActionDraftWrite, ActionDraftRewrite, ActionSend, ActionClose:
		return a, nil
	}
	return "", NewErrorf(ErrCodeInvalidAction,
		"invalid action %q, must be one of: draft_write, draft_rewrite, send, close", s)
}
