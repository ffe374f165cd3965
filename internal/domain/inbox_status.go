package domain

// InboxStatus is the workflow state of a conversation
type InboxStatus string

const (
	// StatusMessage 새 대화 (아직 응답 없음)
	StatusMessage InboxStatus = "message"
	// StatusInProgress 처리 중
	StatusInProgress InboxStatus = "in_progress"
	// StatusTreated 처리 완료 (재개 가능)
	StatusTreated InboxStatus = "treated"
)

// Badge colors
const (
	ColorInfo    = "info"
	ColorWarning = "warning"
	ColorSuccess = "success"
	ColorDanger  = "danger"
)

// Display labels
const (
	LabelSent       = "sent"
	LabelNew        = "new"
	LabelInProgress = "in progress"
	LabelTreated    = "treated"
	LabelMessage    = "message"
)

// Valid reports whether s is a known status
func (s InboxStatus) Valid() bool {
	switch s {
	case StatusMessage, StatusInProgress, StatusTreated:
		return true
	}
	return false
}

// Label returns the perspective-free label
func (s InboxStatus) Label() string {
	switch s {
	case StatusInProgress:
		return LabelInProgress
	case StatusTreated:
		return LabelTreated
	default:
		return LabelMessage
	}
}

// Color returns the perspective-free badge color
func (s InboxStatus) Color() string {
	switch s {
	case StatusInProgress:
		return ColorWarning
	case StatusTreated:
		return ColorSuccess
	default:
		return ColorInfo
	}
}

// DisplayLabel returns the label as seen by a viewer.
// MESSAGE reads "sent" for the creator and "new" for the other side; IN_PROGRESS
// reads "in progress" only while the viewer authored the last message.
func (s InboxStatus) DisplayLabel(viewerIsCreator, lastFromViewer bool) string {
	switch s {
	case StatusMessage:
		if viewerIsCreator {
			return LabelSent
		}
		return LabelNew
	case StatusInProgress:
		if lastFromViewer {
			return LabelInProgress
		}
		return LabelNew
	case StatusTreated:
		return LabelTreated
	}
	return LabelNew
}

// DisplayColor returns the badge color as seen by a viewer
func (s InboxStatus) DisplayColor(viewerIsCreator, lastFromViewer bool) string {
	switch s {
	case StatusMessage:
		if viewerIsCreator {
			return ColorInfo
		}
		return ColorDanger
	case StatusInProgress:
		if lastFromViewer {
			return ColorWarning
		}
		return ColorDanger
	case StatusTreated:
		return ColorSuccess
	}
	return ColorDanger
}

// NextStatusOnSend returns the status after a message is sent.
// Activity on a treated thread, or any message from the non-creator side,
// moves the conversation to IN_PROGRESS. changed is false when the status stays.
func NextStatusOnSend(current InboxStatus, senderIsCreator bool) (next InboxStatus, changed bool) {
	if current == StatusTreated || !senderIsCreator {
		return StatusInProgress, current != StatusInProgress
	}
	return current, false
}

// TransitionPolicy controls which explicit transitions are exposed
type TransitionPolicy struct {
	// AllowDirectTreat exposes MESSAGE -> TREATED without passing IN_PROGRESS
	AllowDirectTreat bool
}

// DefaultTransitionPolicy matches the actions offered by the inbox UI
func DefaultTransitionPolicy() TransitionPolicy {
	return TransitionPolicy{AllowDirectTreat: true}
}

// AvailableTransitions lists the explicit targets reachable from s
func (p TransitionPolicy) AvailableTransitions(s InboxStatus) []InboxStatus {
	switch s {
	case StatusInProgress:
		return []InboxStatus{StatusTreated}
	case StatusTreated:
		return []InboxStatus{StatusInProgress}
	case StatusMessage:
		if p.AllowDirectTreat {
			return []InboxStatus{StatusInProgress, StatusTreated}
		}
		return []InboxStatus{StatusInProgress}
	}
	return nil
}

// CanTransition reports whether an explicit action may move from -> to.
// Nothing returns to MESSAGE explicitly; same-state transitions are rejected.
func (p TransitionPolicy) CanTransition(from, to InboxStatus) bool {
	if !to.Valid() {
		return false
	}
	for _, target := range p.AvailableTransitions(from) {
		if target == to {
			return true
		}
	}
	return false
}
