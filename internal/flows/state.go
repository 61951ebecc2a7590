package flows

import (
	"errors"
	"fmt"
)

// State is a login attempt's position in the session materializer.
type State int

const (
	StateUnauthenticated State = iota
	StateCredentialsChecked
	StateCredentialsRejected
	StateRateLimited
	StateCSRFRejected
	StateProfileResolved
	StateProfileResolutionFailed
	StateSessionEstablished
)

var stateNames = [...]string{
	StateUnauthenticated:         "unauthenticated",
	StateCredentialsChecked:      "credentials_checked",
	StateCredentialsRejected:     "credentials_rejected",
	StateRateLimited:             "rate_limited",
	StateCSRFRejected:            "csrf_rejected",
	StateProfileResolved:         "profile_resolved",
	StateProfileResolutionFailed: "profile_resolution_failed",
	StateSessionEstablished:      "session_established",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

var transitions = map[State][]State{
	StateUnauthenticated: {
		StateRateLimited,
		StateCSRFRejected,
		StateCredentialsRejected,
		StateCredentialsChecked,
	},
	StateCredentialsChecked: {
		StateCredentialsRejected,
		StateProfileResolved,
		StateProfileResolutionFailed,
	},
	StateProfileResolved: {
		StateSessionEstablished,
	},
}

// ErrIllegalTransition is returned by the machine for a transition missing
// from the table.
var ErrIllegalTransition = errors.New("illegal login state transition")

type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StateUnauthenticated}
}

func (m *machine) advance(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
}
