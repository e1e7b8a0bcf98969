package chrono

import (
	"time"
)

// DefaultLocation is the timezone both supported banks report their transactions in.
const DefaultLocation = "Asia/Jakarta"

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in Location().
	Now() time.Time
	Location() *time.Location
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct {
	location *time.Location
}

// NewStandardTime is the constructor of StandardTime, an empty location name
// falls back to DefaultLocation.
func NewStandardTime(location string) (StandardTime, error) {
	if location == "" {
		location = DefaultLocation
	}
	loc, err := time.LoadLocation(location)
	if err != nil {
		return StandardTime{}, err
	}
	return StandardTime{location: loc}, nil
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardTime) Location() *time.Location {
	return s.location
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// SleepAPI is used by anything that has to wait between requests.
//
// note: fault injection point
type SleepAPI interface {
	Sleep(d time.Duration)
}

// StandardSleep blocks the calling goroutine with time.Sleep.
type StandardSleep struct{}

func (StandardSleep) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
