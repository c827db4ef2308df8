package domain

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrCredentialUnavailable = errors.New("credential unavailable")
)
