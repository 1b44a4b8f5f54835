package domain

import "time"

// Song is the permanent record of a completed generation. A song row exists
// if and only if its generation job reached the completed state; a job whose
// cover-art enrichment failed still completes, with CoverImageURL empty.
type Song struct {
	ID     string `gorm:"type:text;primaryKey" json:"id"`
	UserID string `gorm:"type:text;not null;index" json:"user_id"`

	Title  string `gorm:"type:text;default:Untitled" json:"title"`
	Prompt string `gorm:"type:text;not null" json:"prompt"`
	Lyrics string `gorm:"type:text" json:"lyrics,omitempty"`

	AudioURL      string `gorm:"type:text" json:"audio_url"`
	CoverImageURL string `gorm:"type:text" json:"cover_image_url,omitempty"`

	Duration int    `gorm:"default:30" json:"duration"`
	Genre    string `gorm:"type:text" json:"genre,omitempty"`
	BPM      int    `json:"bpm,omitempty"`

	IsPublic  bool `gorm:"default:false;index" json:"is_public"`
	PlayCount int  `gorm:"default:0" json:"play_count"`
	LikeCount int  `gorm:"default:0" json:"like_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Song.
func (Song) TableName() string {
	return "songs"
}
