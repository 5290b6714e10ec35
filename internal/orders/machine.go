package orders

import (
	"github.com/angelmondragon/vendorpay-backend/pkg/enums"
)

// transitions is the event-kind × current-status table. Absent combinations
// do not change order status: terminal orders absorb late events, duplicates
// and out-of-order deliveries are ignored, and transfer events only touch
// payout state.
var transitions = map[enums.EventKind]map[enums.OrderStatus]enums.OrderStatus{
	enums.EventKindPaymentCompleted: {
		enums.OrderStatusPendingPayment: enums.OrderStatusPaid,
	},
	enums.EventKindPaymentFailed: {
		enums.OrderStatusPendingPayment: enums.OrderStatusFailed,
	},
	enums.EventKindPaymentRefunded: {
		enums.OrderStatusPaid:      enums.OrderStatusRefunded,
		enums.OrderStatusCompleted: enums.OrderStatusRefunded,
	},
}

// NextStatus resolves the transition for an event kind against the current
// status. The second return reports whether a transition applies; callers
// acknowledge non-applying events without touching the order.
func NextStatus(current enums.OrderStatus, kind enums.EventKind) (enums.OrderStatus, bool) {
	byStatus, ok := transitions[kind]
	if !ok {
		return current, false
	}
	next, ok := byStatus[current]
	if !ok {
		return current, false
	}
	return next, true
}

// TouchesPayoutOnly reports whether the event kind updates payout state
// without ever changing order status.
func TouchesPayoutOnly(kind enums.EventKind) bool {
	return kind == enums.EventKindTransferCompleted || kind == enums.EventKindTransferFailed
}
