package domain

import (
	"fmt"
	"sort"
	"time"
)

// Event triggers a Verification status change.
type Event string

const (
	EventConsentApproved Event = "consent_approved"
	EventConsentDenied   Event = "consent_denied"
	EventCallDispatched  Event = "call_dispatched"
	EventCallEnded       Event = "call_ended"
	EventEmailSent       Event = "email_sent"
	EventFinalized       Event = "finalized"
)

// transitions is the only place verification edges are defined.
var transitions = map[Status]map[Event]Status{
	StatusPendingConsent: {
		EventConsentApproved: StatusConsentApproved,
		EventConsentDenied:   StatusConsentDenied,
	},
	StatusConsentApproved: {
		EventCallDispatched: StatusCallInProgress,
		EventEmailSent:      StatusEmployerEmailSent,
		EventFinalized:      StatusCompleted,
	},
	StatusCallInProgress: {
		EventCallEnded: StatusPhoneCompleted,
	},
	StatusPhoneCompleted: {
		EventEmailSent: StatusEmployerEmailSent,
		EventFinalized: StatusCompleted,
	},
	StatusEmployerEmailSent: {
		EventFinalized: StatusCompleted,
	},
	StatusConsentDenied: {},
	StatusCompleted:     {},
}

var rank = map[Status]int{
	StatusPendingConsent:    0,
	StatusConsentApproved:   1,
	StatusCallInProgress:    2,
	StatusPhoneCompleted:    3,
	StatusEmployerEmailSent: 4,
	StatusCompleted:         5,
	StatusConsentDenied:     5,
}

// Rank orders statuses along the workflow; transitions never lower it.
func Rank(s Status) int {
	if r, ok := rank[s]; ok {
		return r
	}
	return -1
}

// NextStatus returns the status reached from `from` on ev.
func NextStatus(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%s from %s: %w", ev, from, ErrInvalidTransition)
}

// CanTransition checks if ev is a valid edge out of from.
func CanTransition(from Status, ev Event) bool {
	_, err := NextStatus(from, ev)
	return err == nil
}

// AllowedEvents returns the events accepted in status from, sorted by name.
func AllowedEvents(from Status) []Event {
	evs := make([]Event, 0, len(transitions[from]))
	for ev := range transitions[from] {
		evs = append(evs, ev)
	}
	sort.Slice(evs, func(i, j int) bool { return evs[i] < evs[j] })
	return evs
}

// Transition moves v along ev or leaves it untouched and returns
// ErrInvalidTransition.
func Transition(v *Verification, ev Event, at time.Time) error {
	to, err := NextStatus(v.Status, ev)
	if err != nil {
		return fmt.Errorf("verification %s: %w", v.VerificationID, err)
	}
	v.Status = to
	v.UpdatedAt = at
	return nil
}
