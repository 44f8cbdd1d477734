package domain

import "errors"

var (
	// ErrNoSubject is returned when an operation needs an authenticated user
	// (a public key to read from or a key to sign with) and none is available.
	ErrNoSubject = errors.New("no authenticated subject")

	// ErrNothingToPublish is returned when every relay list is empty.
	ErrNothingToPublish = errors.New("nothing to publish: all relay lists are empty")

	// ErrAllRelaysRejected is returned by transports when no relay accepted a write.
	ErrAllRelaysRejected = errors.New("all relays rejected the event")

	// ErrNoRelays is returned by transports asked to talk to an empty relay set.
	ErrNoRelays = errors.New("no relays to contact")

	// ErrInvalidRelayURL is returned when a relay list holds an entry that
	// is not a ws:// or wss:// URL.
	ErrInvalidRelayURL = errors.New("invalid relay url")

	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrMissingHost       = errors.New("missing host")
)
