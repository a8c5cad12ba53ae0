package statemachine

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/models"
)

// Schedule entry events
const (
	ScheduleEventPartial = "pay_partial"
	ScheduleEventSettle  = "settle"
	ScheduleEventOverdue = "mark_overdue"
)

// ScheduleEntryFSM wraps a schedule entry with its state machine
type ScheduleEntryFSM struct {
	entry *models.PaymentScheduleEntry
	fsm   *fsm.FSM
}

// NewScheduleEntryFSM creates a new schedule entry state machine
func NewScheduleEntryFSM(entry *models.PaymentScheduleEntry) *ScheduleEntryFSM {
	sfsm := &ScheduleEntryFSM{
		entry: entry,
	}

	open := []string{
		string(models.ScheduleStatusPending),
		string(models.ScheduleStatusPartial),
		string(models.ScheduleStatusOverdue),
	}

	sfsm.fsm = fsm.NewFSM(
		string(entry.Status),
		fsm.Events{
			// pending/partial/overdue → partial
			{Name: ScheduleEventPartial, Src: open, Dst: string(models.ScheduleStatusPartial)},

			// pending/partial/overdue → paid
			{Name: ScheduleEventSettle, Src: open, Dst: string(models.ScheduleStatusPaid)},

			// pending/partial → overdue
			{Name: ScheduleEventOverdue, Src: []string{string(models.ScheduleStatusPending), string(models.ScheduleStatusPartial)}, Dst: string(models.ScheduleStatusOverdue)},
		},
		fsm.Callbacks{},
	)

	return sfsm
}

func (s *ScheduleEntryFSM) fire(ctx context.Context, event string) error {
	from := s.entry.Status
	if err := s.fsm.Event(ctx, event); err != nil {
		// partial → partial is a self transition that looplab reports as NoTransitionError
		var same fsm.NoTransitionError
		if errors.As(err, &same) {
			return nil
		}
		if from == models.ScheduleStatusPaid {
			return apperrors.ErrEntryAlreadyPaid
		}
		return apperrors.NewStateError("schedule entry", string(from), event)
	}
	s.entry.Status = models.ScheduleStatus(s.fsm.Current())
	return nil
}

// PayPartial moves the entry to partial
func (s *ScheduleEntryFSM) PayPartial(ctx context.Context) error {
	return s.fire(ctx, ScheduleEventPartial)
}

// Settle moves the entry to paid
func (s *ScheduleEntryFSM) Settle(ctx context.Context) error {
	return s.fire(ctx, ScheduleEventSettle)
}

// MarkOverdue moves the entry to overdue
func (s *ScheduleEntryFSM) MarkOverdue(ctx context.Context) error {
	return s.fire(ctx, ScheduleEventOverdue)
}

// Current returns the current state
func (s *ScheduleEntryFSM) Current() string {
	return s.fsm.Current()
}

// Can checks if a transition is possible
func (s *ScheduleEntryFSM) Can(event string) bool {
	return s.fsm.Can(event)
}
