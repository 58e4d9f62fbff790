package types

import "errors"

var (
	ErrNoTargets     = errors.New("no webhook targets configured")
	ErrEmptyAddress  = errors.New("empty address")
	ErrInvalidConfig = errors.New("invalid configuration")
)
