package domain

import "errors"

var (
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrUnknownSide   = errors.New("unknown order side")
	ErrOrderNotFound = errors.New("order not found")
)
