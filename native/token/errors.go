package token

import "errors"

var (
	ErrNilState            = errors.New("token: state not configured")
	ErrUnknownSymbol       = errors.New("token: unknown symbol")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrUnauthorized        = errors.New("token: unauthorized minter")
)
