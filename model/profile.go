package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile represents a guild member account.
type Profile struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	DisplayName  string     `gorm:"size:64" json:"display_name"`
	AvatarURL    string     `gorm:"size:255" json:"avatar_url"`
	IsOfficer    bool       `gorm:"default:false" json:"is_officer"`
	Status       int        `gorm:"default:1" json:"status"` // 0=banned 1=normal
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"last_login_ip"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
