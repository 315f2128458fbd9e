package pool

import "time"

// Clock provides time operations (injectable for testing).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
