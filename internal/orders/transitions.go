package orders

import "fmt"

// Action enumerates externally invokable operations gated by the state machine.
type Action string

const (
	ActionSend          Action = "send"
	ActionConfirm       Action = "confirm"
	ActionMarkInTransit Action = "mark_in_transit"
	ActionReceive       Action = "receive"
	ActionCancel        Action = "cancel"
	ActionDelete        Action = "delete"
)

// Decision is the outcome of a transition check. Target is the resulting
// status for status-only actions; receive and delete leave it empty because
// the reconciler (respectively the delete path) decides the outcome.
type Decision struct {
	Allowed bool
	Target  Status
	Reason  string
}

var transitionTable = map[Status]map[Action]Status{
	StatusDraft: {
		ActionSend:   StatusSent,
		ActionCancel: StatusCancelled,
		ActionDelete: "",
	},
	StatusSent: {
		ActionConfirm: StatusConfirmed,
		ActionReceive: "",
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionMarkInTransit: StatusInTransit,
		ActionReceive:       "",
		ActionCancel:        StatusCancelled,
	},
	StatusInTransit: {
		ActionReceive: "",
		ActionCancel:  StatusCancelled,
	},
	StatusPartial: {
		ActionReceive: "",
		ActionCancel:  StatusCancelled,
	},
	StatusCancelled: {
		ActionDelete: "",
	},
	StatusReceived: {},
}

// IsAllowed checks whether action is legal for the current status.
func IsAllowed(current Status, action Action) Decision {
	actions, ok := transitionTable[current]
	if ok {
		if target, ok := actions[action]; ok {
			return Decision{Allowed: true, Target: target}
		}
	}
	return Decision{Reason: fmt.Sprintf("invalid transition from %s", current)}
}
