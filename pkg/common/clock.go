package common

import "time"

// for time mock
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type DefaultClock struct{}

func NewDefaultClock() Clock {
	return &DefaultClock{}
}

func (c *DefaultClock) Now() time.Time {
	return time.Now()
}

func (c *DefaultClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}
