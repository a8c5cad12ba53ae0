package events

import (
	"context"

	"github.com/sjperalta/fintera-lending/pkg/logger"
)

// LogPublisher writes events to the application log. It is used when no
// broker is configured.
type LogPublisher struct{}

// NewLogPublisher creates a publisher that only logs
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (LogPublisher) PublishLoanStatusChanged(ctx context.Context, event LoanStatusChanged) error {
	logger.Log.InfoContext(ctx, "event", "key", RoutingKeyLoanStatusChanged, "loan_id", event.LoanID, "from", event.From, "to", event.To)
	return nil
}

func (LogPublisher) PublishScheduleGenerated(ctx context.Context, event ScheduleGenerated) error {
	logger.Log.InfoContext(ctx, "event", "key", RoutingKeyScheduleGenerated, "loan_id", event.LoanID, "installments", event.Installments)
	return nil
}

func (LogPublisher) PublishPaymentApplied(ctx context.Context, event PaymentApplied) error {
	logger.Log.InfoContext(ctx, "event", "key", RoutingKeyPaymentApplied, "schedule_entry_id", event.ScheduleEntryID, "status", event.Status)
	return nil
}

func (LogPublisher) PublishIncomeRecognized(ctx context.Context, event IncomeRecognized) error {
	logger.Log.InfoContext(ctx, "event", "key", RoutingKeyIncomeRecognized, "schedule_entry_id", event.ScheduleEntryID, "amount", event.Amount)
	return nil
}

func (LogPublisher) Close() error { return nil }

var _ Publisher = LogPublisher{}
