package curated

import "errors"

var (
	ErrUnreachable        = errors.New("document store unreachable")
	ErrBatchWrite         = errors.New("document batch write failed")
	ErrUnsupportedBackend = errors.New("unsupported document store backend")
)
