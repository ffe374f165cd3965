package migration

import (
	"fmt"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// Models lists every table owned by the inbox, in dependency order
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Inbox{},
		&domain.Message{},
		&domain.ReadReceipt{},
		&domain.MessageNotification{},
	}
}

// Run executes AutoMigrate for the inbox tables.
// 테이블 없으면 생성, 컬럼/인덱스만 추가하고 삭제는 하지 않는다.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Missing returns the names of tables that Run would create
func Missing(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, err
		}
		if !db.Migrator().HasTable(model) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}

// SeedUsers inserts the given users when the users table is empty (local development)
func SeedUsers(db *gorm.DB, users []domain.User) (int, error) {
	var count int64
	if err := db.Model(&domain.User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 || len(users) == 0 {
		return 0, nil
	}
	if err := db.Create(&users).Error; err != nil {
		return 0, err
	}
	return len(users), nil
}

// DevUsers is the seed set used by `migrate -seed`
func DevUsers() []domain.User {
	return []domain.User{
		{ID: "admin", Name: "운영자", Level: 10},
		{ID: "member1", Name: "회원1", Level: 2},
		{ID: "member2", Name: "회원2", Level: 2},
	}
}
