package loot

import (
	"fmt"
	"sort"
	"time"

	"github.com/skipmechanics/guildpanel/model"
)

// Batch-level statuses derived from member statuses.
const (
	BatchLocked   = "Locked"
	BatchApproved = "Approved"
	BatchRejected = "Rejected"
	BatchPending  = "Pending"
	BatchMixed    = "Mixed"
)

// SubmissionBatch is one form submission reassembled from its rows.
type SubmissionBatch struct {
	Key           string              `json:"key"`
	UserID        string              `json:"user_id"`
	CharacterName string              `json:"character_name"`
	Class         string              `json:"class"`
	Raid          string              `json:"raid"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	Requests      []model.LootRequest `json:"requests"`
}

// Group buckets requests by (user, raid, minute of creation) and derives a
// batch-level status for each bucket. The result does not depend on the
// input order: members are re-sorted inside each batch and batches are
// ordered newest first with the key as tiebreaker.
func Group(requests []model.LootRequest) []SubmissionBatch {
	buckets := make(map[string]*SubmissionBatch)
	for _, req := range requests {
		minute := req.CreatedAt.Truncate(time.Minute)
		key := fmt.Sprintf("%s|%s|%d", req.UserID, req.Raid, minute.Unix())
		batch, ok := buckets[key]
		if !ok {
			batch = &SubmissionBatch{
				Key:           key,
				UserID:        req.UserID,
				CharacterName: req.CharacterName,
				Class:         req.Class,
				Raid:          req.Raid,
			}
			buckets[key] = batch
		}
		if req.CreatedAt.After(batch.CreatedAt) {
			batch.CreatedAt = req.CreatedAt
		}
		batch.Requests = append(batch.Requests, req)
	}

	batches := make([]SubmissionBatch, 0, len(buckets))
	for _, batch := range buckets {
		sort.Slice(batch.Requests, func(i, j int) bool {
			a, b := batch.Requests[i], batch.Requests[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			if a.ItemName != b.ItemName {
				return a.ItemName < b.ItemName
			}
			return a.ID < b.ID
		})
		batch.Status = batchStatus(batch.Requests)
		batches = append(batches, *batch)
	}
	sort.Slice(batches, func(i, j int) bool {
		if !batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].CreatedAt.After(batches[j].CreatedAt)
		}
		return batches[i].Key < batches[j].Key
	})
	return batches
}

// batchStatus folds member statuses into one label. The checks form a
// decision list: a fully locked batch reads as Locked even when every
// member also happens to be approved.
func batchStatus(requests []model.LootRequest) string {
	if len(requests) == 0 {
		return BatchPending
	}
	allLocked, allApproved, allRejected, anyPending := true, true, true, false
	for _, req := range requests {
		if !req.Locked {
			allLocked = false
		}
		if req.Status != model.StatusApproved {
			allApproved = false
		}
		if req.Status != model.StatusRejected {
			allRejected = false
		}
		if req.Status == model.StatusPending || req.Status == "" {
			anyPending = true
		}
	}
	switch {
	case allLocked:
		return BatchLocked
	case allApproved:
		return BatchApproved
	case allRejected:
		return BatchRejected
	case anyPending:
		return BatchPending
	default:
		return BatchMixed
	}
}
