package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Roles recognised by the authorization guard.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a blog account. Passwords are stored as bcrypt hashes only.
// Social login accounts have an empty PasswordHash and a non-empty Provider.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Role         string    `gorm:"size:16;not null;default:user" json:"role"`
	Provider     string    `gorm:"size:32" json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Posts        []Post    `gorm:"foreignKey:AuthorID" json:"-"`
	Comments     []Comment `gorm:"foreignKey:AuthorID" json:"-"`
}

// IsAdmin reports whether the user may author and manage posts.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// BeforeCreate normalises the email and fills the default role.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
