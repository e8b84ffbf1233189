/**
 * @description
 * The provider gateway wraps each external paid service behind one uniform
 * shape: a pre-flight eligibility check and a purchase call with a normalized
 * outcome. The ledger engine never sees provider-specific error types; a
 * transport failure, timeout, or explicit provider rejection all surface as a
 * failed PurchaseOutcome at this boundary.
 */

package gateway

import (
	"context"
	"encoding/json"

	"github.com/padipay/wallet-service/internal/domain"
)

// Pre-flight rejection codes. ServiceUnavailable means the platform's own
// float with the upstream provider cannot cover the purchase; InvalidCustomer
// means provider-side customer validation (meter, smartcard) failed. Both are
// checked before any wallet debit so they never cost the user a
// debit-and-refund round trip.
const (
	ReasonServiceUnavailable = "service_unavailable"
	ReasonInvalidCustomer    = "invalid_customer"
)

// PreflightResult reports whether a purchase may proceed.
type PreflightResult struct {
	Eligible bool
	Code     string // set when Eligible is false
	Reason   string // human-readable detail
}

// PurchaseOutcome is the normalized result of a provider purchase call.
type PurchaseOutcome struct {
	Success      bool
	ProviderTxID string
	Message      string
	Raw          json.RawMessage
}

// Gateway is implemented per external paid service family.
type Gateway interface {
	// Preflight must never mutate anything; it only answers "would a debit be
	// wasted". An error return means the check itself could not run and is
	// treated the same as not eligible.
	Preflight(ctx context.Context, params domain.PurchaseParams) (*PreflightResult, error)
	// Purchase never returns transport errors; they are mapped to a failed
	// outcome so the caller's refund obligation stays deterministic.
	Purchase(ctx context.Context, params domain.PurchaseParams) *PurchaseOutcome
}
