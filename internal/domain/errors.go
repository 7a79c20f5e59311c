package domain

import "errors"

// Business failures surfaced to callers. Conflict errors are final: the
// caller should stop retrying and refresh its view. ErrBusy is retryable.
var (
	ErrValidation      = errors.New("validation_error")
	ErrNotFound        = errors.New("not_found")
	ErrAlreadyAccepted = errors.New("already_accepted")
	ErrSlotConflict    = errors.New("slot_conflict")
	ErrSlotFull        = errors.New("slot_full")
	ErrBusy            = errors.New("busy")
)
