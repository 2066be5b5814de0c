package session

import "errors"

var (
	// ErrEmptyURL is reported for a play request without a usable source.
	ErrEmptyURL = errors.New("play request has no source url")

	// ErrNoCard is reported for a request that does not name a card.
	ErrNoCard = errors.New("request has no card")

	// ErrSuperseded is passed to a start callback whose load was replaced
	// by a newer one.
	ErrSuperseded = errors.New("playback superseded")
)
