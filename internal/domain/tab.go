package domain

// Tab is a viewer-relative display bucket derived from status and authorship
type Tab string

const (
	TabNew        Tab = "new"
	TabSent       Tab = "sent"
	TabInProgress Tab = "in_progress"
	TabTreated    Tab = "treated"
)

// AllTabs lists the tabs in display order
var AllTabs = []Tab{TabNew, TabSent, TabInProgress, TabTreated}

// ParseTab parses a tab query value, defaulting to TabNew
func ParseTab(value string) Tab {
	switch Tab(value) {
	case TabSent, TabInProgress, TabTreated:
		return Tab(value)
	default:
		return TabNew
	}
}

// InboxSnapshot is the minimal state needed to classify a conversation.
// LastSenderID is empty when the conversation has no visible message.
type InboxSnapshot struct {
	InboxID      uint64
	Status       InboxStatus
	CreatorID    string
	LastSenderID string
	HasUnread    bool
}

// ClassifyTab assigns the conversation to exactly one tab for the viewer
func ClassifyTab(status InboxStatus, creatorID, lastSenderID, viewerID string) Tab {
	switch status {
	case StatusMessage:
		if creatorID == viewerID {
			return TabSent
		}
		return TabNew
	case StatusInProgress:
		if lastSenderID != "" && lastSenderID == viewerID {
			return TabInProgress
		}
		return TabNew
	case StatusTreated:
		return TabTreated
	}
	return TabNew
}

// Classify is ClassifyTab applied to a snapshot
func (s InboxSnapshot) Classify(viewerID string) Tab {
	return ClassifyTab(s.Status, s.CreatorID, s.LastSenderID, viewerID)
}

// TabCounts holds unread conversation counts per tab
type TabCounts struct {
	New        int64 `json:"new"`
	Sent       int64 `json:"sent"`
	InProgress int64 `json:"in_progress"`
	Treated    int64 `json:"treated"`
	Total      int64 `json:"total"`
}

// Get returns the count for one tab
func (c TabCounts) Get(tab Tab) int64 {
	switch tab {
	case TabSent:
		return c.Sent
	case TabInProgress:
		return c.InProgress
	case TabTreated:
		return c.Treated
	default:
		return c.New
	}
}

func (c *TabCounts) add(tab Tab) {
	switch tab {
	case TabSent:
		c.Sent++
	case TabInProgress:
		c.InProgress++
	case TabTreated:
		c.Treated++
	default:
		c.New++
	}
}

// CountUnread classifies every unread snapshot once, so per-tab counts always
// sum to Total.
func CountUnread(snapshots []InboxSnapshot, viewerID string) TabCounts {
	var counts TabCounts
	for _, s := range snapshots {
		if !s.HasUnread {
			continue
		}
		counts.add(s.Classify(viewerID))
		counts.Total++
	}
	return counts
}
