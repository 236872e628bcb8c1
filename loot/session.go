package loot

import (
	"errors"

	"github.com/skipmechanics/guildpanel/model"
	"gorm.io/gorm"
)

// Session is the request-scoped identity threaded into every core operation.
// Core services are pure functions of (session, input, collection state);
// nothing reads ambient user state.
type Session struct {
	UserID      string
	DisplayName string
	IsOfficer   bool
}

// Anonymous reports whether the session carries no authenticated user.
// Anonymous sessions may only read decided requests.
func (s Session) Anonymous() bool {
	return s.UserID == ""
}

// LoadSession resolves a user ID to a Session with the officer flag read
// fresh from the profiles table. A banned profile resolves to an error so
// tokens issued before the ban stop working immediately.
func LoadSession(db *gorm.DB, userID string) (Session, error) {
	if userID == "" {
		return Session{}, nil
	}
	var prof model.Profile
	if err := db.Where("id = ?", userID).First(&prof).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, ErrPermissionDenied
		}
		return Session{}, err
	}
	if prof.Status == 0 {
		return Session{}, ErrPermissionDenied
	}
	name := prof.DisplayName
	if name == "" {
		name = prof.Username
	}
	return Session{UserID: prof.ID, DisplayName: name, IsOfficer: prof.IsOfficer}, nil
}
