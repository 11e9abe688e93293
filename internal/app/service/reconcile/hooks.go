package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/fatflowers/momobridge/internal/models"
)

// Hook is one side effect of a terminal transition. Hooks run in a fixed
// registration order; a failing hook is logged and never blocks the others.
type Hook interface {
	Name() string
	Handle(ctx context.Context, txn *models.Transaction) error
}

// Listener observes every merged record after any transition, including
// non-terminal ones. Invocation is synchronous and best-effort.
type Listener interface {
	Notify(ctx context.Context, txn *models.Transaction) error
}

// payerNotificationHook sends the confirmation or failure message to the
// payer. Delivery channels (email/SMS) are fire-and-forget collaborators, so
// the hook only hands the record off and logs.
type payerNotificationHook struct {
	log     *zap.SugaredLogger
	success bool
}

func (h *payerNotificationHook) Name() string {
	if h.success {
		return "confirmation_notification"
	}
	return "failure_notification"
}

func (h *payerNotificationHook) Handle(ctx context.Context, txn *models.Transaction) error {
	h.log.Infow("payment notification dispatched",
		"hook", h.Name(),
		"reference_id", txn.ReferenceID,
		"payer_phone", txn.PayerPhone,
		"status", txn.Status,
	)
	return nil
}

// inventoryHook releases reserved stock for the paid order.
type inventoryHook struct {
	log *zap.SugaredLogger
}

func (h *inventoryHook) Name() string { return "inventory_update" }

func (h *inventoryHook) Handle(ctx context.Context, txn *models.Transaction) error {
	h.log.Infow("inventory update dispatched", "reference_id", txn.ReferenceID, "external_id", txn.ExternalID)
	return nil
}

// loyaltyHook awards loyalty points for the completed payment.
type loyaltyHook struct {
	log *zap.SugaredLogger
}

func (h *loyaltyHook) Name() string { return "loyalty_award" }

func (h *loyaltyHook) Handle(ctx context.Context, txn *models.Transaction) error {
	h.log.Infow("loyalty award dispatched", "reference_id", txn.ReferenceID, "amount", txn.Amount)
	return nil
}

// fulfillmentHook triggers order fulfillment downstream.
type fulfillmentHook struct {
	log *zap.SugaredLogger
}

func (h *fulfillmentHook) Name() string { return "fulfillment_trigger" }

func (h *fulfillmentHook) Handle(ctx context.Context, txn *models.Transaction) error {
	h.log.Infow("fulfillment dispatched", "reference_id", txn.ReferenceID, "external_id", txn.ExternalID)
	return nil
}

// analyticsHook records failed payments for offline analysis.
type analyticsHook struct {
	log *zap.SugaredLogger
}

func (h *analyticsHook) Name() string { return "failure_analytics" }

func (h *analyticsHook) Handle(ctx context.Context, txn *models.Transaction) error {
	reason := ""
	if txn.FailureReason != nil {
		reason = *txn.FailureReason
	}
	h.log.Infow("payment failure recorded for analytics",
		"reference_id", txn.ReferenceID,
		"failure_reason", reason,
	)
	return nil
}

func defaultSuccessHooks(log *zap.SugaredLogger) []Hook {
	return []Hook{
		&payerNotificationHook{log: log, success: true},
		&inventoryHook{log: log},
		&loyaltyHook{log: log},
		&fulfillmentHook{log: log},
	}
}

func defaultFailureHooks(log *zap.SugaredLogger) []Hook {
	return []Hook{
		&payerNotificationHook{log: log, success: false},
		&analyticsHook{log: log},
	}
}
