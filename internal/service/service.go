package service

import (
	"time"
)

// Notifier pushes live events to POS clients (implemented by ws.Hub)
type Notifier interface {
	Publish(eventType string, data interface{}, message string)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, interface{}, string) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// Clock returns the current time; injected so tests can pin it
type Clock func() time.Time

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// StaffPolicy decides the validity window of ephemeral staff logins
type StaffPolicy struct {
	CutoffHour int
	Location   *time.Location
}

// ValidityWindow returns [now, cutoff) where cutoff is today's cutoff hour in
// the policy zone, or tomorrow's when now is already past it. Both in UTC.
func (p StaffPolicy) ValidityWindow(now time.Time) (time.Time, time.Time) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), p.CutoffHour, 0, 0, 0, loc)
	if !local.Before(cutoff) {
		cutoff = cutoff.AddDate(0, 0, 1)
	}
	return now.UTC(), cutoff.UTC()
}
