package service

import (
	"context"
	"strings"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/cache"
)

// UserDirectory resolves display names (userName(id)) with a redis read-through cache
type UserDirectory struct {
	userRepo *repository.UserRepository
	cache    cache.Service
}

// NewUserDirectory creates a new UserDirectory; cache may be nil
func NewUserDirectory(userRepo *repository.UserRepository, cacheSvc cache.Service) *UserDirectory {
	if cacheSvc == nil {
		cacheSvc = cache.NewService(nil)
	}
	return &UserDirectory{userRepo: userRepo, cache: cacheSvc}
}

// Exists reports whether the user id is known
func (d *UserDirectory) Exists(ctx context.Context, id string) (bool, error) {
	return d.userRepo.Exists(ctx, id)
}

// Names maps ids to names. Unknown ids are omitted.
func (d *UserDirectory) Names(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		// redis 장애도 miss 로 보고 DB 에서 조회
		if name, err := d.cache.GetUserName(ctx, id); err == nil {
			names[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names, nil
	}

	found, err := d.userRepo.FindNames(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range found {
		names[id] = name
		_ = d.cache.SetUserName(ctx, id, name)
	}
	return names, nil
}

// Search finds users by name for recipient selection. A blank query matches nobody.
func (d *UserDirectory) Search(ctx context.Context, query, excludeID string, limit int) ([]domain.UserSummary, error) {
	out := make([]domain.UserSummary, 0)
	if strings.TrimSpace(query) == "" {
		return out, nil
	}
	users, err := d.userRepo.SearchByName(ctx, query, excludeID, limit)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out = append(out, domain.UserSummary{ID: u.ID, Name: u.Name})
		_ = d.cache.SetUserName(ctx, u.ID, u.Name)
	}
	return out, nil
}
