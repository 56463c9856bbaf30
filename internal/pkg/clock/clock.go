// Package clock lets usecases read the time through an interface, so tests
// can pin "now" when checking activation times.
package clock

import "time"

type Clocker interface {
	Now() time.Time
}

// UTC is the production clock. Stored timestamps are compared across
// replicas, so it never returns local time.
type UTC struct{}

func New() UTC { return UTC{} }

func (UTC) Now() time.Time { return time.Now().UTC() }
