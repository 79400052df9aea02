package remote

import "errors"

var (
	ErrOffline           = errors.New("remote store unreachable")
	ErrTimeout           = errors.New("remote request timed out")
	ErrUnauthorized      = errors.New("remote request unauthorized")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidRow        = errors.New("invalid row")
)
