package authn

import "errors"

var (
	ErrMissingToken        = errors.New("authorization token is missing")
	ErrInvalidToken        = errors.New("authorization token is invalid")
	ErrTokenMissingSubject = errors.New("token has no subject claim")
	ErrNoIdentity          = errors.New("no identity in context")
)
