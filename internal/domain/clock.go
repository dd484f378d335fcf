package domain

import "github.com/jonboulle/clockwork"

// clock stamps ProcessedAt on cleaned contracts.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used to stamp cleaned records. Pass nil to
// reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
