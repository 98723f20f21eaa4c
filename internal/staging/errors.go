package staging

import "errors"

var (
	ErrUnreachable       = errors.New("staging database unreachable")
	ErrBatchWrite        = errors.New("staging batch write failed")
	ErrUnsupportedDriver = errors.New("unsupported staging driver")
	ErrInvalidTable      = errors.New("invalid table name")
)
