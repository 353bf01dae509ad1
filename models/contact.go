package models

import "time"

// Contact is a message left through the contact form. Rows are never updated.
type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Email     string    `gorm:"size:150;not null" json:"email"`
	Phone     string    `gorm:"size:50" json:"phone"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// All returns every model that takes part in migrations, parents first.
func All() []interface{} {
	return []interface{}{&User{}, &Post{}, &Comment{}, &Contact{}}
}
