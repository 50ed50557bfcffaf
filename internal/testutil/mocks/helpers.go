package mocks

import (
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Match creates a custom argument matcher for mock expectations.
func Match(fn func(interface{}) bool) interface{} {
	return mock.MatchedBy(fn)
}

// AnyUUID matches any non-nil uuid value.
func AnyUUID() interface{} {
	return Match(func(arg interface{}) bool {
		id, ok := arg.(uuid.UUID)
		return ok && id != uuid.Nil
	})
}

// AnyTime matches any time.Time value.
func AnyTime() interface{} {
	return Match(func(arg interface{}) bool {
		_, ok := arg.(time.Time)
		return ok
	})
}

// TimeWithin matches a time within delta of expected.
func TimeWithin(expected time.Time, delta time.Duration) interface{} {
	return Match(func(arg interface{}) bool {
		t, ok := arg.(time.Time)
		if !ok {
			return false
		}
		diff := t.Sub(expected)
		if diff < 0 {
			diff = -diff
		}
		return diff <= delta
	})
}
