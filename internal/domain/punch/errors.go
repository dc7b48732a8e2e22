package punch

import (
	"errors"
	"fmt"
)

var (
	ErrWebhookUnauthorized = errors.New("invalid webhook secret")
	ErrInvalidWindow       = errors.New("sync window end must be after start")
)

// MalformedRecordError marks a single upstream record that cannot be stored.
// It is never fatal to a batch.
type MalformedRecordError struct {
	ID     int64
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed punch record %d: %s", e.ID, e.Reason)
}
