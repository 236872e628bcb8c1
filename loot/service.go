package loot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/skipmechanics/guildpanel/audit"
	"github.com/skipmechanics/guildpanel/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RaidSubmission is the rows a member filled in for one raid.
type RaidSubmission struct {
	Raid  string `json:"raid"`
	Items []Row  `json:"items"`
}

// BatchSubmission is one multi-raid form submission.
type BatchSubmission struct {
	CharacterName string           `json:"character_name"`
	Class         string           `json:"class"`
	DiscordName   string           `json:"discord_name"`
	Raids         []RaidSubmission `json:"raids"`
}

// Filter narrows the overview listing.
type Filter struct {
	Raid      string
	Status    string
	Character string
}

// Service owns the request lifecycle: batch submission, officer moderation,
// and the member re-review loop. Every operation takes the caller's Session
// explicitly and returns the canonical stored record after a write.
type Service struct {
	db           *gorm.DB
	validator    *Validator
	audit        *audit.Service
	logger       *zap.Logger
	maxBatchRows int
}

func NewService(db *gorm.DB, validator *Validator, auditSvc *audit.Service, logger *zap.Logger, maxBatchRows int) *Service {
	if maxBatchRows <= 0 {
		maxBatchRows = 100
	}
	return &Service{
		db:           db,
		validator:    validator,
		audit:        auditSvc,
		logger:       logger,
		maxBatchRows: maxBatchRows,
	}
}

// SubmitBatch validates every row across every raid and inserts them
// atomically. A single invalid row aborts the whole batch with nothing
// persisted. All rows of one submission share the same CreatedAt so the
// grouper can reassemble them later.
func (s *Service) SubmitBatch(ctx context.Context, sess Session, sub BatchSubmission) ([]model.LootRequest, error) {
	if sess.Anonymous() {
		return nil, ErrPermissionDenied
	}
	character := strings.TrimSpace(sub.CharacterName)
	class := strings.TrimSpace(sub.Class)
	if character == "" || class == "" {
		return nil, &ValidationError{Reason: ReasonMissingIdentity}
	}

	submittedAt := time.Now()
	var requests []model.LootRequest
	total := 0
	for _, raid := range sub.Raids {
		raidName := strings.TrimSpace(raid.Raid)
		if raidName == "" {
			continue
		}
		rows, err := s.validator.CleanRows(ctx, sess, raid.Items)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			total++
			if total > s.maxBatchRows {
				return nil, &ValidationError{Reason: ReasonTooManyRows}
			}
			requests = append(requests, model.LootRequest{
				UserID:        sess.UserID,
				DiscordName:   strings.TrimSpace(sub.DiscordName),
				CharacterName: character,
				Class:         class,
				Raid:          raidName,
				ItemName:      row.ItemName,
				Slot:          row.Slot,
				Priority:      row.Priority,
				UserNote:      row.Note,
				Status:        model.StatusPending,
				CreatedAt:     submittedAt,
			})
		}
	}
	if len(requests) == 0 {
		return nil, &ValidationError{Reason: ReasonNoValidItems}
	}

	if err := s.db.WithContext(ctx).Create(&requests).Error; err != nil {
		return nil, err
	}

	s.logger.Info("loot batch submitted",
		zap.String("user_id", sess.UserID),
		zap.String("character", character),
		zap.Int("rows", len(requests)))
	return requests, nil
}

// Decide approves or rejects a pending request. Officer only, and refused
// while the record is locked.
func (s *Service) Decide(ctx context.Context, sess Session, id, status string) (*model.LootRequest, error) {
	if !sess.IsOfficer {
		return nil, ErrPermissionDenied
	}
	if status != model.StatusApproved && status != model.StatusRejected {
		return nil, &ValidationError{Reason: ReasonBadField, Item: status}
	}

	req, err := s.mutate(ctx, id, func(req *model.LootRequest) (map[string]interface{}, error) {
		if req.Locked {
			return nil, ErrRecordLocked
		}
		return map[string]interface{}{
			"status":      status,
			"reviewed_by": sess.DisplayName,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(audit.Entry{
		TraceID:   audit.TraceIDFrom(ctx),
		ActorID:   sess.UserID,
		ActorName: sess.DisplayName,
		Action:    "request." + status,
		TargetID:  id,
		Request:   map[string]string{"item_name": req.ItemName, "character": req.CharacterName},
	})
	return req, nil
}

// Resubmit returns a decided request to the pending queue. Owner only,
// allowed only after a decision and while unlocked. Content fields are
// left as-is; the member edits them separately before asking for re-review.
func (s *Service) Resubmit(ctx context.Context, sess Session, id string) (*model.LootRequest, error) {
	if sess.Anonymous() {
		return nil, ErrPermissionDenied
	}
	return s.mutate(ctx, id, func(req *model.LootRequest) (map[string]interface{}, error) {
		if req.UserID != sess.UserID {
			return nil, ErrPermissionDenied
		}
		if req.Locked {
			return nil, ErrRecordLocked
		}
		if !req.Decided() {
			return nil, ErrPermissionDenied
		}
		return map[string]interface{}{
			"status":      model.StatusPending,
			"reviewed_by": gorm.Expr("NULL"),
		}, nil
	})
}

// EditField changes one field of a request. Members may edit their own
// user_note and priority, but only once a decision has been rendered;
// before that the only member path is a fresh submission. Officers may
// edit item_name, raid and admin_note at any time. Both paths require the
// record to be unlocked.
func (s *Service) EditField(ctx context.Context, sess Session, id, field, value string) (*model.LootRequest, error) {
	if sess.Anonymous() {
		return nil, ErrPermissionDenied
	}

	officerEdit := false
	req, err := s.mutate(ctx, id, func(req *model.LootRequest) (map[string]interface{}, error) {
		if req.Locked {
			return nil, ErrRecordLocked
		}
		switch field {
		case "user_note", "priority":
			if req.UserID != sess.UserID {
				return nil, ErrPermissionDenied
			}
			if !req.Decided() {
				return nil, ErrPermissionDenied
			}
			if field == "priority" {
				priority, ok := NormalizePriority(value)
				if !ok {
					return nil, &ValidationError{Reason: ReasonBadPriority, Item: value}
				}
				// Same screening as submission: an item reserved after
				// the original request still blocks a priority bump.
				reserved, err := s.validator.registry.Contains(ctx, req.ItemName)
				if err != nil {
					return nil, err
				}
				if reserved {
					return nil, &ValidationError{Reason: ReasonHardReserveConflict, Item: req.ItemName}
				}
				if priority == model.PriorityHR && !sess.IsOfficer {
					return nil, &ValidationError{Reason: ReasonInsufficientPrivilege, Item: req.ItemName}
				}
				value = priority
			}
			return map[string]interface{}{field: strings.TrimSpace(value)}, nil
		case "item_name", "raid", "admin_note":
			if !sess.IsOfficer {
				return nil, ErrPermissionDenied
			}
			if field != "admin_note" && strings.TrimSpace(value) == "" {
				return nil, &ValidationError{Reason: ReasonBadField, Item: field}
			}
			officerEdit = true
			return map[string]interface{}{field: strings.TrimSpace(value)}, nil
		default:
			return nil, &ValidationError{Reason: ReasonBadField, Item: field}
		}
	})
	if err != nil {
		return nil, err
	}

	if officerEdit {
		s.audit.Log(audit.Entry{
			TraceID:   audit.TraceIDFrom(ctx),
			ActorID:   sess.UserID,
			ActorName: sess.DisplayName,
			Action:    "request.edit",
			TargetID:  id,
			Request:   map[string]string{"field": field, "value": value},
		})
	}
	return req, nil
}

// ToggleLock flips the lock flag. Officer only. This is the one mutation
// that works on a locked record, otherwise nothing could ever be unlocked.
func (s *Service) ToggleLock(ctx context.Context, sess Session, id string) (*model.LootRequest, error) {
	if !sess.IsOfficer {
		return nil, ErrPermissionDenied
	}
	req, err := s.mutate(ctx, id, func(req *model.LootRequest) (map[string]interface{}, error) {
		return map[string]interface{}{"locked": !req.Locked}, nil
	})
	if err != nil {
		return nil, err
	}

	action := "request.lock"
	if !req.Locked {
		action = "request.unlock"
	}
	s.audit.Log(audit.Entry{
		TraceID:   audit.TraceIDFrom(ctx),
		ActorID:   sess.UserID,
		ActorName: sess.DisplayName,
		Action:    action,
		TargetID:  id,
	})
	return req, nil
}

// Delete permanently removes a request. Officer only.
func (s *Service) Delete(ctx context.Context, sess Session, id string) error {
	if !sess.IsOfficer {
		return ErrPermissionDenied
	}
	var req model.LootRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if req.Locked {
		return ErrRecordLocked
	}
	if err := s.db.WithContext(ctx).Delete(&req).Error; err != nil {
		return err
	}

	s.audit.Log(audit.Entry{
		TraceID:   audit.TraceIDFrom(ctx),
		ActorID:   sess.UserID,
		ActorName: sess.DisplayName,
		Action:    "request.delete",
		TargetID:  id,
		Request:   map[string]string{"item_name": req.ItemName, "character": req.CharacterName},
	})
	return nil
}

// Get returns one request. Anonymous callers only see decided records.
func (s *Service) Get(ctx context.Context, sess Session, id string) (*model.LootRequest, error) {
	var req model.LootRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sess.Anonymous() && !req.Decided() {
		return nil, ErrNotFound
	}
	return &req, nil
}

// List returns the overview, ordered by raid then item name. Anonymous
// callers only see decided requests.
func (s *Service) List(ctx context.Context, sess Session, f Filter) ([]model.LootRequest, error) {
	q := s.db.WithContext(ctx).Model(&model.LootRequest{})
	if sess.Anonymous() {
		q = q.Where("status IN ?", []string{model.StatusApproved, model.StatusRejected})
	}
	if f.Raid != "" {
		q = q.Where("raid = ?", f.Raid)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Character != "" {
		q = q.Where("LOWER(character_name) LIKE ?", "%"+strings.ToLower(f.Character)+"%")
	}
	var requests []model.LootRequest
	if err := q.Order("raid ASC, item_name ASC, created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// ListMine returns the caller's own requests grouped into submission
// batches, newest batch first.
func (s *Service) ListMine(ctx context.Context, sess Session) ([]SubmissionBatch, error) {
	if sess.Anonymous() {
		return nil, ErrPermissionDenied
	}
	var requests []model.LootRequest
	err := s.db.WithContext(ctx).
		Where("user_id = ?", sess.UserID).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return Group(requests), nil
}

// mutate loads a request, asks fn which columns to change, applies them
// and reloads the canonical row. fn returning an error leaves the record
// untouched.
func (s *Service) mutate(ctx context.Context, id string, fn func(*model.LootRequest) (map[string]interface{}, error)) (*model.LootRequest, error) {
	var req model.LootRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		updates, err := fn(&req)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.LootRequest{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&req).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}
