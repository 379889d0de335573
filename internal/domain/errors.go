package domain

import "errors"

var (
	ErrInvalidConfig   = errors.New("invalid session config")
	ErrInvalidScore    = errors.New("invalid intensity score")
	ErrCorruptSnapshot = errors.New("corrupt session snapshot")
)
