package loot

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied covers both anonymous access to member operations
	// and member access to officer operations.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRecordLocked rejects any mutation on a locked request other than
	// unlocking it.
	ErrRecordLocked = errors.New("request is locked")

	// ErrNotFound is returned when the target request or reserve does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateItem rejects adding a hard reserve whose item name already
	// exists under case-insensitive comparison.
	ErrDuplicateItem = errors.New("item is already hard reserved")
)

// ValidationReason identifies why a submission or edit was rejected.
type ValidationReason string

const (
	// ReasonHardReserveConflict means a non-officer requested an item on the
	// hard-reserve list. The whole batch is rejected.
	ReasonHardReserveConflict ValidationReason = "hard_reserve_conflict"

	// ReasonInsufficientPrivilege means a non-officer used the HR priority.
	ReasonInsufficientPrivilege ValidationReason = "insufficient_privilege"

	// ReasonNoValidItems means every row in the submission was blank.
	ReasonNoValidItems ValidationReason = "no_valid_items"

	// ReasonMissingIdentity means character name or class was empty.
	ReasonMissingIdentity ValidationReason = "missing_identity"

	// ReasonBadPriority means the priority value did not normalize to a
	// known level.
	ReasonBadPriority ValidationReason = "bad_priority"

	// ReasonBadField means an edit targeted a field the caller may not
	// change, or no field at all.
	ReasonBadField ValidationReason = "bad_field"

	// ReasonTooManyRows means the submission exceeded the configured row cap.
	ReasonTooManyRows ValidationReason = "too_many_rows"
)

// ValidationError reports a rejected submission together with the item that
// triggered it, when one item in particular is to blame.
type ValidationError struct {
	Reason ValidationReason
	Item   string
}

func (e *ValidationError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("validation failed: %s (%s)", e.Reason, e.Item)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
