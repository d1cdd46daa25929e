package models

import "errors"

// Sentinel errors shared across components and repositories. Components
// wrap these with context via fmt.Errorf("...: %w", err); callers
// classify with errors.Is.
var (
	ErrNotFound            = errors.New("record not found")
	ErrAlreadyExists        = errors.New("record already exists")
	ErrInvalidTransition    = errors.New("invalid pipeline status transition")
	ErrTransitionInProgress = errors.New("another transition is already in progress for this pipeline")
	ErrUnknownModule        = errors.New("unknown module")
	ErrBadTemplate           = errors.New("template rendering produced an invalid result")
	ErrNoSuitableColumn      = errors.New("no suitable column for filter")
	ErrJoinValidationFailed  = errors.New("join validation failed")
	ErrSinkUnavailable       = errors.New("sink warehouse unavailable")
	ErrIncompatibleSchema    = errors.New("sink schema incompatible with expected schema")
	ErrInvalidCredentials    = errors.New("credential probe failed")
	ErrDecryptionFailed      = errors.New("decryption failed: invalid ciphertext or authentication failed")
	ErrConnectFailed         = errors.New("failed to connect to external system")
	ErrQueryFailed           = errors.New("query against external system failed")
	ErrInvalidFilterExpression = errors.New("filter expression does not type-check against table columns")
)
