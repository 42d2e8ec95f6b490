package session

import "errors"

// ErrGenerationInFlight is returned when a second generate call arrives
// while one is pending. The call is rejected, not queued.
var ErrGenerationInFlight = errors.New("generation already in flight")

// ErrModelRequired is returned when no ready model is selected. The request
// never reaches the network.
var ErrModelRequired = errors.New("a loaded model must be selected before generating")

// ErrEmptyText is returned when the request text is empty after trimming.
var ErrEmptyText = errors.New("text must not be empty")
