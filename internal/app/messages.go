package app

import "github.com/abhisek/lingo/internal/session"

// engineEventMsg carries one engine event into the Bubble Tea loop.
type engineEventMsg struct {
	Event session.Event
}

// eventsClosedMsg is sent once the engine closes the subscription.
type eventsClosedMsg struct{}

// initDoneMsg is sent when InitializeWithContext returns.
type initDoneMsg struct {
	Err error
}

// commandDoneMsg reports the result of an engine call that may block on
// the microphone.
type commandDoneMsg struct {
	Op  string
	Err error
}
