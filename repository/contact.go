package repository

import (
	"context"

	"github.com/cppla/blog/models"
)

// CreateContact appends a contact message.
func (s *Store) CreateContact(ctx context.Context, c *models.Contact) error {
	return s.db.WithContext(ctx).Create(c).Error
}
