package domain

import "time"

// User is a directory entry used for participant lookup and display names (users table)
type User struct {
	ID        string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	Name      string    `gorm:"column:name;size:255;not null" json:"name"`
	Email     string    `gorm:"column:email;size:255;index" json:"email,omitempty"`
	Level     int       `gorm:"column:level;default:1" json:"level"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name
func (User) TableName() string {
	return "users"
}

// UserSummary is a recipient candidate in lookup results
type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
