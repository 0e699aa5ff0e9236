package main

import "errors"

var (
	ErrReadProfile  = errors.New("cannot read profile")
	ErrMissingFlag  = errors.New("missing required flag")
	ErrInvalidInput = errors.New("invalid input")
)
