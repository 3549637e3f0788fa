package operator

import "github.com/google/uuid"

// NewInstanceID returns an identifier used only for log correlation and
// metrics labels: it never participates in windowing logic or state
// partitioning (that is the host's job, out of scope for this core).
func NewInstanceID() string {
	return uuid.NewString()
}
