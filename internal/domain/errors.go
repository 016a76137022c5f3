package domain

import "errors"

var (
	ErrNotAuctioneer       = errors.New("not auctioneer")
	ErrMarketNotRegistered = errors.New("market not registered")
	ErrPairNotSupported    = errors.New("pair not supported")
	ErrInvalidParams       = errors.New("invalid params")
	ErrUnauthorized        = errors.New("unauthorized")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
)
