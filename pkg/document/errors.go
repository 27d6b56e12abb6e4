package document

import "errors"

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrConflict        = errors.New("document update conflict")
	ErrContentTooLarge = errors.New("document content exceeds size bound")
)
