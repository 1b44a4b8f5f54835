package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/kaili/songforge/internal/domain"
	"gorm.io/gorm"
)

// SongRepository handles persistence of completed generations.
type SongRepository struct {
	db *gorm.DB
}

// NewSongRepository creates a new SongRepository.
func NewSongRepository(db *gorm.DB) *SongRepository {
	return &SongRepository{db: db}
}

// Create inserts a new song record, assigning an ID when absent.
func (r *SongRepository) Create(ctx context.Context, song *domain.Song) error {
	if song.ID == "" {
		song.ID = uuid.New().String()
	}
	if song.Title == "" {
		song.Title = "Untitled"
	}
	return r.db.WithContext(ctx).Create(song).Error
}

// GetByID returns a song by its ID.
func (r *SongRepository) GetByID(ctx context.Context, id string) (*domain.Song, error) {
	var song domain.Song
	if err := r.db.WithContext(ctx).First(&song, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &song, nil
}

// CountByUser returns how many songs a user owns. Used by operational logging.
func (r *SongRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Song{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
