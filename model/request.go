package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request moderation states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Priority tiers, lowest to highest. "hr" is the officer-only tier.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityHR     = "hr"
)

// LootRequest is one member's priority claim on one item in one raid.
type LootRequest struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"index:idx_request_user;size:36;not null" json:"user_id"`
	DiscordName   string    `gorm:"size:64" json:"discord_name"`
	CharacterName string    `gorm:"size:32;not null" json:"character_name"`
	Class         string    `gorm:"size:16" json:"class"`
	Raid          string    `gorm:"index:idx_request_raid;size:64;not null" json:"raid"`
	ItemName      string    `gorm:"size:128;not null" json:"item_name"`
	Slot          string    `gorm:"size:32;not null" json:"slot"`
	Priority      string    `gorm:"size:8;not null" json:"priority"`
	Status        string    `gorm:"index:idx_request_status;size:16;default:pending" json:"status"`
	ReviewedBy    *string   `gorm:"size:64" json:"reviewed_by"`
	UserNote      string    `gorm:"type:text" json:"user_note"`
	AdminNote     string    `gorm:"type:text" json:"admin_note"`
	Locked        bool      `gorm:"default:false" json:"locked"`
	CreatedAt     time.Time `gorm:"index:idx_request_created;autoCreateTime" json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (r *LootRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Decided reports whether a moderation decision has been rendered.
func (r *LootRequest) Decided() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}
