package webhook

import (
	"time"
	"unicode/utf8"
)

// MaxResponseBodyLength bounds the stored subscriber response body, in characters.
const MaxResponseBodyLength = 10_000

var backoffSchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

// Backoff is the delay before the next attempt of an event that has already
// failed retryCount times. Values past the schedule reuse its last step.
func Backoff(retryCount int32) time.Duration {
	switch {
	case retryCount < 0:
		retryCount = 0
	case int(retryCount) >= len(backoffSchedule):
		retryCount = int32(len(backoffSchedule) - 1)
	}
	return backoffSchedule[retryCount]
}

// TruncateBody cuts s to MaxResponseBodyLength characters.
func TruncateBody(s string) string {
	if utf8.RuneCountInString(s) <= MaxResponseBodyLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxResponseBodyLength])
}
