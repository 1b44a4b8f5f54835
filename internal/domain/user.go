package domain

import "time"

// User carries the fields the generation pipeline touches: identity for
// ownership checks and the credit balance debited at admission. Account
// management lives outside this service.
type User struct {
	ID             string `gorm:"type:text;primaryKey" json:"id"`
	Username       string `gorm:"type:text;uniqueIndex" json:"username"`
	Email          string `gorm:"type:text" json:"email,omitempty"`
	CreditsBalance int    `gorm:"default:100" json:"credits_balance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}
