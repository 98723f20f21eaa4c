package container

import "errors"

var (
	// ErrSourceUnreadable marks a container file that could not be parsed. Non-fatal to a run.
	ErrSourceUnreadable = errors.New("container file unreadable")

	// ErrUnrecognizedFraming is returned by a framing strategy when the file is not in its
	// physical layout at all, which is the only condition that moves on to the next strategy.
	ErrUnrecognizedFraming = errors.New("unrecognized arrow framing")

	// ErrFieldMissing means the schema has no column with the configured text field name.
	ErrFieldMissing = errors.New("text field not found")

	// ErrUnsupportedType means the text column is not a string column.
	ErrUnsupportedType = errors.New("unsupported text column type")
)
