package service

import (
	"context"

	"github.com/looplab/fsm"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
)

// Booking lifecycle events.
const (
	EventConfirm  = "confirm"
	EventStart    = "start_charging"
	EventComplete = "complete"
	EventCancel   = "cancel"
)

// The only legal edges: pending -> confirmed -> charging -> completed, plus
// pending|confirmed -> cancelled. Cancelling an active charging session goes
// through the operator stop path, not this machine.
func newBookingFSM(current string) *fsm.FSM {
	return fsm.NewFSM(
		current,
		fsm.Events{
			{Name: EventConfirm, Src: []string{models.BookingStatusPending}, Dst: models.BookingStatusConfirmed},
			{Name: EventStart, Src: []string{models.BookingStatusConfirmed}, Dst: models.BookingStatusCharging},
			{Name: EventComplete, Src: []string{models.BookingStatusCharging}, Dst: models.BookingStatusCompleted},
			{Name: EventCancel, Src: []string{models.BookingStatusPending, models.BookingStatusConfirmed}, Dst: models.BookingStatusCancelled},
		},
		fsm.Callbacks{},
	)
}

// Transition validates one lifecycle edge and returns the destination status.
// Any edge outside the machine yields a StateError naming the attempted event
// and the state the booking was actually in.
func Transition(ctx context.Context, current, event string) (string, error) {
	machine := newBookingFSM(current)
	if err := machine.Event(ctx, event); err != nil {
		return "", &apperrors.StateError{Attempted: event, Current: current}
	}
	return machine.Current(), nil
}
