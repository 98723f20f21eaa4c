package blobstore

import "errors"

var (
	ErrUnreachable = errors.New("object storage unreachable")
	ErrNotFound    = errors.New("object not found")
	ErrInvalidKey  = errors.New("invalid object key")
)
