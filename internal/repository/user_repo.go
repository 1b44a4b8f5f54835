package repository

import (
	"context"
	"errors"

	"github.com/kaili/songforge/internal/domain"
	"gorm.io/gorm"
)

// ErrInsufficientCredits is returned when a debit would take the balance
// below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// UserRepository handles user lookups and the credit ledger.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// DebitCredits decrements the user's balance by amount in a single
// conditional update. The debit happens exactly once per admitted job and is
// intentionally not restored if the job later fails.
func (r *UserRepository) DebitCredits(ctx context.Context, userID string, amount int) error {
	res := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND credits_balance >= ?", userID, amount).
		UpdateColumn("credits_balance", gorm.Expr("credits_balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientCredits
	}
	return nil
}
