package tracker

import "github.com/google/uuid"

// NewRunID returns a random identifier for one batch run.
func NewRunID() string {
	return uuid.NewString()
}
