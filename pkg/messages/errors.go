package messages

import (
	"errors"
	"fmt"
)

// DecodeError reports a malformed or truncated payload. Receivers drop the
// message and keep the connection.
type DecodeError struct {
	Schema string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %s", e.Schema, e.Reason)
}

func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodeErrorf(schema string, format string, args ...interface{}) error {
	return &DecodeError{
		Schema: schema,
		Reason: fmt.Sprintf(format, args...),
	}
}
