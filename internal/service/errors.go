package service

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrInternalServer = errors.New("internal server error")
)
