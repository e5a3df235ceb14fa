package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrCodeSpaceExhausted indicates no unique room code could be allocated.
	ErrCodeSpaceExhausted = errors.New("repository: room code space exhausted")
)

var (
	ErrRoomNotFound       = ErrNotFound
	ErrAnnotationNotFound = ErrNotFound
)
