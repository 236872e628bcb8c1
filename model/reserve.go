package model

import "time"

// HardReserve is an item name withheld from the normal request flow.
// Item names are unique case-insensitively; the registry service enforces
// that because expression indexes are not portable across our drivers.
type HardReserve struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemName  string    `gorm:"size:128;not null" json:"item_name"`
	Note      string    `gorm:"type:text" json:"note"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
