package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID mints a session identifier: a millisecond timestamp prefix for
// rough chronological sortability in logs, suffixed with a uuid to keep it
// globally unique across restarts and replicas.
func NewID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}
