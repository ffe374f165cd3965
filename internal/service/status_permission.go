package service

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
)

// StatusPermission decides whether a viewer may change conversation status (canManageStatus)
type StatusPermission interface {
	CanManageStatus(ctx context.Context, viewer domain.Viewer) bool
}

// LevelStatusPermission grants status management to members at or above a level
type LevelStatusPermission struct {
	enabled  bool
	minLevel int
}

// NewLevelStatusPermission creates a level based checker
func NewLevelStatusPermission(enabled bool, minLevel int) *LevelStatusPermission {
	return &LevelStatusPermission{enabled: enabled, minLevel: minLevel}
}

// CanManageStatus implements StatusPermission
func (p *LevelStatusPermission) CanManageStatus(_ context.Context, viewer domain.Viewer) bool {
	if !p.enabled || viewer.ID == "" {
		return false
	}
	return viewer.Level >= p.minLevel
}

// StatusPermissionFunc adapts a function to StatusPermission
type StatusPermissionFunc func(ctx context.Context, viewer domain.Viewer) bool

// CanManageStatus implements StatusPermission
func (f StatusPermissionFunc) CanManageStatus(ctx context.Context, viewer domain.Viewer) bool {
	return f(ctx, viewer)
}
