package domain

// Viewer is the authenticated user an operation runs for
type Viewer struct {
	ID    string
	Name  string
	Level int
}
