package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/blog/models"
)

// ListPosts returns every post with its author, newest first.
// An empty table yields an empty slice, never ErrNotFound.
func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	err := s.db.WithContext(ctx).
		Preload("Author").
		Order("id DESC").
		Find(&posts).Error
	return posts, err
}

// PostByID loads a post with its author and comments (oldest comment first).
func (s *Store) PostByID(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Comments.Author").
		First(&p, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CreatePost inserts p. A taken title yields ErrDuplicateTitle.
func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	if err := s.db.WithContext(ctx).Omit("Author", "Comments").Create(p).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicateTitle
		}
		return err
	}
	return nil
}

// UpdatePost saves the editable fields of p. Author and date are left unchanged.
func (s *Store) UpdatePost(ctx context.Context, p *models.Post) error {
	res := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"title":    p.Title,
			"subtitle": p.Subtitle,
			"body":     p.Body,
			"img_url":  p.ImgURL,
		})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return ErrDuplicateTitle
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes the post and all of its comments in one transaction.
// Comments are deleted explicitly so the result does not depend on the
// driver enforcing ON DELETE CASCADE.
func (s *Store) DeletePost(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
