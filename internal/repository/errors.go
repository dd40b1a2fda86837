package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrNotHolder         = errors.New("from is not the current holder")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrReentrant         = errors.New("re-entrant transaction on the same store")
	ErrBusy              = errors.New("store lock timeout")
)
