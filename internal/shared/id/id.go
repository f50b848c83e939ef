// Package id provides request identifier generation for the HTTP surface.
//
// Kernel entities are identified by slot indices, not by these IDs; request
// IDs exist only to correlate log lines and responses.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// RequestPrefix marks request identifiers in logs.
const RequestPrefix = "req"

// NewRequestID generates a prefixed request identifier.
func NewRequestID() string {
	return fmt.Sprintf("%s_%s", RequestPrefix, uuid.NewString())
}
