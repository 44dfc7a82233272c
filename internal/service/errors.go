package service

import "errors"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidTree     = errors.New("invalid file tree")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrInvalidInput    = errors.New("invalid input")
)
