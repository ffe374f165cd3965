package domain

import "testing"

func TestNextStatusOnSend(t *testing.T) {
	tests := []struct {
		name            string
		current         InboxStatus
		senderIsCreator bool
		want            InboxStatus
		wantChanged     bool
	}{
		{"creator follow-up keeps message", StatusMessage, true, StatusMessage, false},
		{"reply from recipient opens", StatusMessage, false, StatusInProgress, true},
		{"creator in progress stays", StatusInProgress, true, StatusInProgress, false},
		{"recipient in progress stays", StatusInProgress, false, StatusInProgress, false},
		{"creator reopens treated", StatusTreated, true, StatusInProgress, true},
		{"recipient reopens treated", StatusTreated, false, StatusInProgress, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := NextStatusOnSend(tt.current, tt.senderIsCreator)
			if got != tt.want {
				t.Errorf("Expected status %s, got %s", tt.want, got)
			}
			if changed != tt.wantChanged {
				t.Errorf("Expected changed=%v, got %v", tt.wantChanged, changed)
			}
		})
	}
}

func TestTransitionPolicy_CanTransition(t *testing.T) {
	def := DefaultTransitionPolicy()
	strict := TransitionPolicy{AllowDirectTreat: false}

	tests := []struct {
		name   string
		policy TransitionPolicy
		from   InboxStatus
		to     InboxStatus
		want   bool
	}{
		{"in progress to treated", def, StatusInProgress, StatusTreated, true},
		{"treated to in progress", def, StatusTreated, StatusInProgress, true},
		{"message to in progress", def, StatusMessage, StatusInProgress, true},
		{"message to treated allowed", def, StatusMessage, StatusTreated, true},
		{"message to treated strict", strict, StatusMessage, StatusTreated, false},
		{"back to message", def, StatusInProgress, StatusMessage, false},
		{"treated to message", def, StatusTreated, StatusMessage, false},
		{"same state", def, StatusTreated, StatusTreated, false},
		{"unknown target", def, StatusMessage, InboxStatus("archived"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestInboxStatus_DisplayLabel(t *testing.T) {
	if got := StatusMessage.DisplayLabel(true, true); got != LabelSent {
		t.Errorf("creator should see %q, got %q", LabelSent, got)
	}
	if got := StatusMessage.DisplayColor(false, false); got != ColorDanger {
		t.Errorf("recipient should see danger, got %q", got)
	}
	if got := StatusInProgress.DisplayLabel(false, true); got != LabelInProgress {
		t.Errorf("last author should see %q, got %q", LabelInProgress, got)
	}
	if got := StatusInProgress.DisplayLabel(true, false); got != LabelNew {
		t.Errorf("waiting side should see %q, got %q", LabelNew, got)
	}
	for _, creator := range []bool{true, false} {
		if got := StatusTreated.DisplayLabel(creator, !creator); got != LabelTreated {
			t.Errorf("treated should always read %q, got %q", LabelTreated, got)
		}
		if got := StatusTreated.DisplayColor(creator, creator); got != ColorSuccess {
			t.Errorf("treated should always be success, got %q", got)
		}
	}
	if StatusMessage.Color() != ColorInfo || StatusInProgress.Color() != ColorWarning {
		t.Error("unexpected raw status colors")
	}
}
