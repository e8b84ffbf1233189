/**
 * @description
 * Periodic reconciliation of withdrawals stuck in processing. The sweeper
 * queries the payout processor for each stale request and drives it to the
 * terminal status the processor reports. Requests the processor still calls
 * pending are left for the next sweep.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: Cron scheduling with panic recovery.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/padipay/wallet-service/internal/domain"
	"github.com/padipay/wallet-service/pkg/payoutclient"
)

const staleWithdrawalBatchSize = 50

// Reconciler runs the stale-withdrawal sweep on a cron schedule.
type Reconciler struct {
	service  *Service
	cron     *cron.Cron
	schedule string
	staleAge time.Duration
}

// NewReconciler creates a reconciler sweeping requests processing for longer
// than staleAge, on the given cron schedule.
func NewReconciler(service *Service, schedule string, staleAge time.Duration) *Reconciler {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Reconciler{
		service:  service,
		cron:     c,
		schedule: schedule,
		staleAge: staleAge,
	}
}

// Start registers the sweep job and starts the scheduler.
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		r.service.ReconcileStaleWithdrawals(ctx, r.staleAge)
	}); err != nil {
		return err
	}
	r.cron.Start()
	log.Printf("level=info component=reconciler msg=\"stale withdrawal sweep scheduled\" schedule=%q stale_age=%s", r.schedule, r.staleAge)
	return nil
}

// Stop stops the scheduler and returns a context that is done once any
// in-flight sweep finishes.
func (r *Reconciler) Stop() context.Context {
	return r.cron.Stop()
}

// ReconcileStaleWithdrawals queries the payout processor for every request
// stuck in processing and applies the reported terminal status. Each request
// is handled independently so one processor error does not stall the batch.
func (s *Service) ReconcileStaleWithdrawals(ctx context.Context, staleAge time.Duration) {
	cutoff := time.Now().Add(-staleAge)
	requests, err := s.repo.ListStaleProcessingWithdrawals(ctx, cutoff, staleWithdrawalBatchSize)
	if err != nil {
		log.Printf("level=error component=reconciler msg=\"stale withdrawal listing failed\" err=%v", err)
		return
	}
	if len(requests) == 0 {
		return
	}
	log.Printf("level=info component=reconciler msg=\"sweeping stale withdrawals\" count=%d cutoff=%s", len(requests), cutoff.Format(time.RFC3339))

	for i := range requests {
		req := &requests[i]
		transfer, err := s.payoutClient.GetTransferStatus(ctx, req.PayoutReference)
		if err != nil {
			log.Printf("level=warn component=reconciler msg=\"transfer status lookup failed\" request_id=%s payout_reference=%s err=%v", req.ID, req.PayoutReference, err)
			continue
		}

		switch transfer.Data.Status {
		case payoutclient.TransferStatusSuccess:
			if _, err := s.ResolveWithdrawal(ctx, req.ID, domain.WithdrawalStatusCompleted, nil); err != nil {
				log.Printf("level=error component=reconciler msg=\"completion resolve failed\" request_id=%s err=%v", req.ID, err)
			}
		case payoutclient.TransferStatusFailed:
			reason := transfer.Data.Reason
			if reason == "" {
				reason = "payout reported failed during reconciliation"
			}
			if _, err := s.ResolveWithdrawal(ctx, req.ID, domain.WithdrawalStatusFailed, &reason); err != nil {
				log.Printf("level=error component=reconciler msg=\"failure resolve failed\" request_id=%s err=%v", req.ID, err)
			}
		default:
			// Still pending at the processor; pick it up next sweep.
		}
	}
}
