/**
 * @description
 * Event payloads exchanged with external collaborators: inbound webhook events
 * from the payment and payout processors, and outbound fire-and-forget
 * notification events published to RabbitMQ after ledger state settles.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds emitted after a ledger mutation settles.
const (
	NotifyCredited         = "credited"
	NotifyDebited          = "debited"
	NotifyRefunded         = "refunded"
	NotifyWithdrawalStatus = "withdrawal_status"
	NotifyWithdrawalOTP    = "withdrawal_otp"
)

// NotificationEvent is published to the notification exchange. Failures to
// publish never roll back the mutation that produced the event.
type NotificationEvent struct {
	UserID      uuid.UUID `json:"user_id"`
	Kind        string    `json:"kind"`
	Amount      int64     `json:"amount,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// FundingEvent is the normalized payment-processor callback for a wallet
// top-up. Reference doubles as the idempotency key.
type FundingEvent struct {
	Reference string    `json:"reference"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"` // in kobo
}

// PayoutStatusEvent is the normalized payout-processor callback reporting the
// terminal state of a previously initiated transfer.
type PayoutStatusEvent struct {
	PayoutReference string `json:"payout_reference"`
	Status          string `json:"status"` // success | failed
	Reason          string `json:"reason,omitempty"`
}
