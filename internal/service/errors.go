package service

import "errors"

var (
	ErrNotFound          = errors.New("task not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidID         = errors.New("invalid task id")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrStoreNil          = errors.New("task store is nil")
	ErrPublisherNil      = errors.New("event publisher is nil")
)
