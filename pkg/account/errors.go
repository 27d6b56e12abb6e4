package account

import "errors"

var (
	ErrNotFound      = errors.New("account not found")
	ErrAlreadyExists = errors.New("account already exists")
	ErrConflict      = errors.New("account update conflict")
)
