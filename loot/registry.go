package loot

import (
	"context"
	"errors"
	"strings"

	"github.com/skipmechanics/guildpanel/audit"
	"github.com/skipmechanics/guildpanel/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Registry manages the hard-reserve list. Item names match
// case-insensitively with surrounding whitespace ignored, both for
// duplicate detection and for conflict checks at submission time.
type Registry struct {
	db     *gorm.DB
	audit  *audit.Service
	logger *zap.Logger
}

func NewRegistry(db *gorm.DB, auditSvc *audit.Service, logger *zap.Logger) *Registry {
	return &Registry{db: db, audit: auditSvc, logger: logger}
}

// List returns reserves newest first. A non-empty search filters by
// substring match on item name or note, case-insensitive.
func (r *Registry) List(ctx context.Context, search string) ([]model.HardReserve, error) {
	q := r.db.WithContext(ctx).Model(&model.HardReserve{})
	if s := strings.TrimSpace(search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(item_name) LIKE ? OR LOWER(note) LIKE ?", pattern, pattern)
	}
	var reserves []model.HardReserve
	if err := q.Order("created_at DESC, id DESC").Find(&reserves).Error; err != nil {
		return nil, err
	}
	return reserves, nil
}

// Contains reports whether itemName is hard reserved.
func (r *Registry) Contains(ctx context.Context, itemName string) (bool, error) {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&model.HardReserve{}).
		Where("LOWER(TRIM(item_name)) = ?", name).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Add creates a reserve. Officer only. Duplicate item names are rejected
// inside the transaction so concurrent adds cannot race past the check.
func (r *Registry) Add(ctx context.Context, sess Session, itemName, note string) (*model.HardReserve, error) {
	if !sess.IsOfficer {
		return nil, ErrPermissionDenied
	}
	itemName = strings.TrimSpace(itemName)
	if itemName == "" {
		return nil, &ValidationError{Reason: ReasonBadField, Item: "item_name"}
	}

	reserve := &model.HardReserve{ItemName: itemName, Note: strings.TrimSpace(note)}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.HardReserve{}).
			Where("LOWER(TRIM(item_name)) = ?", strings.ToLower(itemName)).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateItem
		}
		return tx.Create(reserve).Error
	})
	if err != nil {
		return nil, err
	}

	r.audit.Log(audit.Entry{
		TraceID:   audit.TraceIDFrom(ctx),
		ActorID:   sess.UserID,
		ActorName: sess.DisplayName,
		Action:    "reserve.add",
		Request:   map[string]string{"item_name": itemName, "note": note},
	})
	return reserve, nil
}

// Update changes the item name and/or note of a reserve. Officer only.
// Renaming onto another reserve's item name is rejected.
func (r *Registry) Update(ctx context.Context, sess Session, id int64, itemName, note *string) (*model.HardReserve, error) {
	if !sess.IsOfficer {
		return nil, ErrPermissionDenied
	}

	var reserve model.HardReserve
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&reserve, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		updates := map[string]interface{}{}
		if itemName != nil {
			name := strings.TrimSpace(*itemName)
			if name == "" {
				return &ValidationError{Reason: ReasonBadField, Item: "item_name"}
			}
			var count int64
			if err := tx.Model(&model.HardReserve{}).
				Where("LOWER(TRIM(item_name)) = ? AND id <> ?", strings.ToLower(name), id).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateItem
			}
			updates["item_name"] = name
		}
		if note != nil {
			updates["note"] = strings.TrimSpace(*note)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&reserve).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&reserve, id).Error
	})
	if err != nil {
		return nil, err
	}

	r.audit.Log(audit.Entry{
		TraceID:   audit.TraceIDFrom(ctx),
		ActorID:   sess.UserID,
		ActorName: sess.DisplayName,
		Action:    "reserve.update",
		TargetID:  reserve.ItemName,
	})
	return &reserve, nil
}

// Remove deletes a reserve. Officer only.
func (r *Registry) Remove(ctx context.Context, sess Session, id int64) error {
	if !sess.IsOfficer {
		return ErrPermissionDenied
	}
	var reserve model.HardReserve
	if err := r.db.WithContext(ctx).First(&reserve, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&reserve).Error; err != nil {
		return err
	}

	r.audit.Log(audit.Entry{
		TraceID:   audit.TraceIDFrom(ctx),
		ActorID:   sess.UserID,
		ActorName: sess.DisplayName,
		Action:    "reserve.remove",
		TargetID:  reserve.ItemName,
	})
	return nil
}
