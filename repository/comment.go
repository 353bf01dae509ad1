package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/blog/models"
)

// CreateComment attaches c to an existing post. A missing post yields ErrNotFound.
func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Post{}).Where("id = ?", c.PostID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if err := tx.Omit("Author").Create(c).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
}
