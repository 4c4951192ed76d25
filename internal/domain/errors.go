package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrLockHeld            = errors.New("lock already held")
	ErrNoData              = errors.New("no market data")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSizeTooSmall        = errors.New("trade size rounds to zero")
	ErrNothingToSell       = errors.New("no open position to sell")
	ErrAlreadyInPosition   = errors.New("position already open")
	ErrInvalidParams       = errors.New("invalid strategy parameters")
)
