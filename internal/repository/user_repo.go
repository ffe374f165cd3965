package repository

import (
	"context"
	"errors"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// UserRepository is the user directory used for participant checks and display names
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user or nil when absent
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Exists reports whether a user id is known
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// FindNames maps user ids to display names. Unknown ids are omitted.
func (r *UserRepository) FindNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []domain.User
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// SearchByName returns users whose name contains query, excluding excludeID, by name
func (r *UserRepository) SearchByName(ctx context.Context, query, excludeID string, limit int) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Select("id", "name").
		Where("name LIKE ? ESCAPE '!'", containsPattern(query)).
		Where("id <> ?", excludeID).
		Order("name ASC").
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// Save creates or updates a user entry
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}
