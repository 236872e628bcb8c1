package loot

import (
	"context"
	"strings"

	"github.com/skipmechanics/guildpanel/model"
)

// Row is one candidate line of a submission form. Rows with an empty item
// name or slot are silently dropped rather than rejected; players routinely
// submit forms with unused lines.
type Row struct {
	ItemName string `json:"item"`
	Slot     string `json:"slot"`
	Priority string `json:"priority"`
	Note     string `json:"note"`
}

var prioritySuffixes = []string{"-os", "-ms", "-sr"}

// NormalizePriority maps form-facing priority labels onto the stored
// levels. Labels carry loot-rule suffixes like "Low-OS" or "High-SR";
// the suffix is display sugar and is stripped before matching.
func NormalizePriority(p string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(p))
	for _, suf := range prioritySuffixes {
		v = strings.TrimSuffix(v, suf)
	}
	switch v {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityHR:
		return v, true
	default:
		return "", false
	}
}

// Validator screens submission rows against the hard-reserve list and the
// caller's privileges.
type Validator struct {
	registry *Registry
}

func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// CleanRows drops blank rows and normalizes the rest. Any invalid row
// aborts the whole batch: a hard-reserved item or an HR priority from a
// non-officer rejects everything, not just the offending row.
func (v *Validator) CleanRows(ctx context.Context, sess Session, rows []Row) ([]Row, error) {
	valid := make([]Row, 0, len(rows))
	for _, row := range rows {
		item := strings.TrimSpace(row.ItemName)
		slot := strings.TrimSpace(row.Slot)
		if item == "" || slot == "" {
			continue
		}

		priority, ok := NormalizePriority(row.Priority)
		if !ok {
			return nil, &ValidationError{Reason: ReasonBadPriority, Item: item}
		}
		// The reserve list binds officers too; only the HR priority tag
		// is an officer privilege.
		reserved, err := v.registry.Contains(ctx, item)
		if err != nil {
			return nil, err
		}
		if reserved {
			return nil, &ValidationError{Reason: ReasonHardReserveConflict, Item: item}
		}
		if priority == model.PriorityHR && !sess.IsOfficer {
			return nil, &ValidationError{Reason: ReasonInsufficientPrivilege, Item: item}
		}

		valid = append(valid, Row{
			ItemName: item,
			Slot:     slot,
			Priority: priority,
			Note:     strings.TrimSpace(row.Note),
		})
	}
	return valid, nil
}
