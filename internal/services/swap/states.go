package swap

import (
	"errors"
	"fmt"

	"github.com/hxuan190/swap-engine/internal/domain"
)

type State string

const (
	Idle                         State = "Idle"
	QuotingInFlight              State = "QuotingInFlight"
	QuoteReady                   State = "QuoteReady"
	AwaitingConfirmationFromUser State = "AwaitingConfirmationFromUser"
	Signing                      State = "Signing"
	Submitting                   State = "Submitting"
	Confirming                   State = "Confirming"
	Succeeded                    State = "Succeeded"
	Failed                       State = "Failed"
)

// ErrTransitionRejected is returned when an operation is not valid in the
// current state.
var ErrTransitionRejected = errors.New("transition rejected")

// transitions lists where each state may go. QuotingInFlight is reachable
// from every state because an input change always restarts quoting.
var transitions = map[State][]State{
	Idle:                         {QuotingInFlight},
	QuotingInFlight:              {QuotingInFlight, QuoteReady, Idle},
	QuoteReady:                   {QuotingInFlight, AwaitingConfirmationFromUser, Idle},
	AwaitingConfirmationFromUser: {QuotingInFlight, Signing, Idle},
	Signing:                      {QuotingInFlight, Submitting, Failed, Idle},
	Submitting:                   {QuotingInFlight, Confirming, Failed},
	Confirming:                   {QuotingInFlight, Succeeded, Failed},
	Succeeded:                    {QuotingInFlight, Idle},
	Failed:                       {QuotingInFlight, Idle},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Snapshot is the observable state of one session.
type Snapshot struct {
	State     State
	Intent    domain.SwapIntent
	Quote     *domain.Quote
	Err       error
	Signature string
}

// Notification is sent to observers after every transition.
type Notification struct {
	Previous State
	Snapshot
}

type Observer interface {
	Notify(Notification)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Notification)

func (f ObserverFunc) Notify(n Notification) { f(n) }

func rejected(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, from, to)
}
