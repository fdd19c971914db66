package store

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrOverlap             = errors.New("availability window overlaps an active window")
	ErrSlotTaken           = errors.New("slot already has an active appointment")
	ErrStaleVersion        = errors.New("stale version")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrUnavailable         = errors.New("store unavailable")
)
