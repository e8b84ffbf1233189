package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/pkg/vtuclient"
)

// Services whose purchases require provider-side customer validation before
// any wallet debit is attempted.
var customerValidatedServices = map[domain.ServiceType]string{
	domain.ServiceElectricity: "meter_number",
	domain.ServiceTV:          "smartcard_number",
	domain.ServiceBetting:     "customer_id",
}

// VTUGateway implements Gateway over the VTU aggregator client.
type VTUGateway struct {
	client *vtuclient.Client
}

func NewVTUGateway(client *vtuclient.Client) *VTUGateway {
	return &VTUGateway{client: client}
}

// Preflight checks the platform float and, where the service requires it,
// provider-side customer validation.
func (g *VTUGateway) Preflight(ctx context.Context, params domain.PurchaseParams) (*PreflightResult, error) {
	balance, err := g.client.GetBalance(ctx)
	if err != nil {
		log.Printf("level=warn component=vtu_gateway msg=\"float balance check failed\" service=%s err=%v", params.ServiceType, err)
		return &PreflightResult{
			Eligible: false,
			Code:     ReasonServiceUnavailable,
			Reason:   "provider balance check failed",
		}, nil
	}
	if balance.Data.Balance < params.Amount {
		return &PreflightResult{
			Eligible: false,
			Code:     ReasonServiceUnavailable,
			Reason:   "service temporarily unavailable",
		}, nil
	}

	paramKey, needsValidation := customerValidatedServices[params.ServiceType]
	if !needsValidation {
		return &PreflightResult{Eligible: true}, nil
	}

	customerID := params.ProviderParams[paramKey]
	if customerID == "" {
		return &PreflightResult{
			Eligible: false,
			Code:     ReasonInvalidCustomer,
			Reason:   fmt.Sprintf("missing %s", paramKey),
		}, nil
	}

	validation, err := g.client.ValidateCustomer(ctx, vtuclient.ValidateCustomerRequest{
		Service:    string(params.ServiceType),
		CustomerID: customerID,
		ProviderID: params.ProviderParams["provider_id"],
	})
	if err != nil {
		log.Printf("level=warn component=vtu_gateway msg=\"customer validation unavailable\" service=%s err=%v", params.ServiceType, err)
		return &PreflightResult{
			Eligible: false,
			Code:     ReasonServiceUnavailable,
			Reason:   "customer validation unavailable",
		}, nil
	}
	if !validation.Data.Valid {
		reason := validation.Data.Message
		if reason == "" {
			reason = fmt.Sprintf("%s could not be verified", paramKey)
		}
		return &PreflightResult{
			Eligible: false,
			Code:     ReasonInvalidCustomer,
			Reason:   reason,
		}, nil
	}

	return &PreflightResult{Eligible: true}, nil
}

// Purchase executes the paid call. Every transport or provider error is
// absorbed into a failed outcome here so the caller always pairs the earlier
// debit with a deterministic refund decision.
func (g *VTUGateway) Purchase(ctx context.Context, params domain.PurchaseParams) *PurchaseOutcome {
	resp, raw, err := g.client.Purchase(ctx, vtuclient.PurchaseRequest{
		Service:   string(params.ServiceType),
		Amount:    params.Amount,
		Reference: params.ExternalReference,
		Params:    params.ProviderParams,
	})
	if err != nil {
		log.Printf("level=warn component=vtu_gateway msg=\"purchase call failed\" service=%s reference=%s err=%v",
			params.ServiceType, params.ExternalReference, err)
		return &PurchaseOutcome{
			Success: false,
			Message: "provider purchase failed",
			Raw:     raw,
		}
	}

	if resp.Data.Status != "successful" {
		message := resp.Data.Message
		if message == "" {
			message = "purchase rejected by provider"
		}
		return &PurchaseOutcome{
			Success:      false,
			ProviderTxID: resp.Data.TransactionID,
			Message:      message,
			Raw:          raw,
		}
	}

	return &PurchaseOutcome{
		Success:      true,
		ProviderTxID: resp.Data.TransactionID,
		Message:      resp.Data.Message,
		Raw:          raw,
	}
}
