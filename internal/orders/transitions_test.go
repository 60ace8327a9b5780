package orders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		action  Action
		allowed bool
		target  Status
	}{
		{"draft send", StatusDraft, ActionSend, true, StatusSent},
		{"draft cancel", StatusDraft, ActionCancel, true, StatusCancelled},
		{"draft delete", StatusDraft, ActionDelete, true, ""},
		{"draft confirm", StatusDraft, ActionConfirm, false, ""},
		{"draft receive", StatusDraft, ActionReceive, false, ""},
		{"sent confirm", StatusSent, ActionConfirm, true, StatusConfirmed},
		{"sent receive", StatusSent, ActionReceive, true, ""},
		{"sent cancel", StatusSent, ActionCancel, true, StatusCancelled},
		{"sent send", StatusSent, ActionSend, false, ""},
		{"sent delete", StatusSent, ActionDelete, false, ""},
		{"confirmed transit", StatusConfirmed, ActionMarkInTransit, true, StatusInTransit},
		{"confirmed receive", StatusConfirmed, ActionReceive, true, ""},
		{"confirmed cancel", StatusConfirmed, ActionCancel, true, StatusCancelled},
		{"confirmed confirm", StatusConfirmed, ActionConfirm, false, ""},
		{"in transit receive", StatusInTransit, ActionReceive, true, ""},
		{"in transit cancel", StatusInTransit, ActionCancel, true, StatusCancelled},
		{"in transit transit", StatusInTransit, ActionMarkInTransit, false, ""},
		{"partial receive", StatusPartial, ActionReceive, true, ""},
		{"partial cancel", StatusPartial, ActionCancel, true, StatusCancelled},
		{"partial delete", StatusPartial, ActionDelete, false, ""},
		{"cancelled delete", StatusCancelled, ActionDelete, true, ""},
		{"cancelled cancel", StatusCancelled, ActionCancel, false, ""},
		{"cancelled send", StatusCancelled, ActionSend, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := IsAllowed(tc.from, tc.action)
			require.Equal(t, tc.allowed, decision.Allowed)
			if tc.allowed {
				require.Equal(t, tc.target, decision.Target)
			} else {
				require.Contains(t, decision.Reason, string(tc.from))
			}
		})
	}
}

func TestReceivedIsTerminal(t *testing.T) {
	for _, action := range []Action{ActionSend, ActionConfirm, ActionMarkInTransit, ActionReceive, ActionCancel, ActionDelete} {
		decision := IsAllowed(StatusReceived, action)
		require.False(t, decision.Allowed, "action %s must be denied on RECEIVED", action)
	}
}

func TestUnknownStatusDeniesEverything(t *testing.T) {
	decision := IsAllowed(Status("BOGUS"), ActionSend)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "BOGUS")
}
