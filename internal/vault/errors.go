package vault

import "errors"

var (
	ErrNotInitialized     = errors.New("vault not initialized")
	ErrAlreadyInitialized = errors.New("vault already initialized")
	ErrWrongPassword      = errors.New("wrong master password")
	ErrLocked             = errors.New("vault is locked")
	ErrNotFound           = errors.New("entry not found")
	ErrValidation         = errors.New("validation failed")
	ErrNotInTrash         = errors.New("entry is not in trash")
	ErrEmergencyWaiting   = errors.New("emergency access waiting period has not elapsed")
	ErrNoEmergencyGrant   = errors.New("no emergency access request grants access")
)
