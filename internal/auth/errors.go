package auth

import "errors"

var (
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrInvalidHeader = errors.New("auth: invalid user header")
)
