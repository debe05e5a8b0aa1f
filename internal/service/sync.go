package service

import (
	"context"
	"errors"
	"strings"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/metrics"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/syncqueue"
)

// SyncOffline posts sales queued on a device while it was offline. Every sale
// must carry an offline id; a sale that fails for a transient reason is
// handed to the replay queue instead of being reported as lost.
func (s *Service) SyncOffline(ctx context.Context, storeID string, req domain.OfflineSyncRequest) (domain.OfflineSyncResponse, error) {
	st, actor, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return domain.OfflineSyncResponse{}, err
	}

	resp := domain.OfflineSyncResponse{Statuses: make([]domain.OfflineSyncStatus, 0, len(req.Transactions))}
	for _, sale := range req.Transactions {
		sale.OfflineID = strings.TrimSpace(sale.OfflineID)
		status := domain.OfflineSyncStatus{OfflineID: sale.OfflineID}
		if sale.OfflineID == "" {
			status.Status = domain.SyncStatusRejected
			status.Reason = "offline_id is required"
			resp.Statuses = append(resp.Statuses, status)
			continue
		}

		result, err := s.postSale(ctx, st, actor, sale)
		switch {
		case err == nil && result.Duplicate:
			status.Status = domain.SyncStatusDuplicate
			status.TransactionID = result.Transaction.ID
		case err == nil:
			status.Status = domain.SyncStatusAccepted
			status.TransactionID = result.Transaction.ID
		case isPermanentSaleError(err):
			metrics.SalesRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
			status.Status = domain.SyncStatusRejected
			status.Reason = err.Error()
		default:
			status.Status, status.Reason = s.queueReplay(ctx, st.ID, actor, sale, err)
		}
		resp.Statuses = append(resp.Statuses, status)
	}
	return resp, nil
}

func (s *Service) queueReplay(ctx context.Context, storeID string, actor domain.Actor, sale domain.SaleRequest, cause error) (string, string) {
	err := s.replay.Enqueue(syncqueue.Job{
		StoreID:   storeID,
		OfflineID: sale.OfflineID,
		Sale:      sale,
		Actor:     actor,
		Attempts:  1,
		LastError: cause.Error(),
	})
	if err != nil {
		s.log.Warnw("offline sale could not be queued", "store_id", storeID, "offline_id", sale.OfflineID, "error", err)
		return domain.SyncStatusRejected, err.Error()
	}
	s.log.Infow("offline sale queued for replay", "store_id", storeID, "offline_id", sale.OfflineID, "error", cause)
	return domain.SyncStatusQueued, cause.Error()
}

// RunReplay retries queued offline sales until ctx is cancelled.
func (s *Service) RunReplay(ctx context.Context) {
	s.replay.Run(ctx, s.replaySale)
}

// ReplayPending retries every queued sale whose backoff has elapsed and
// returns how many were attempted.
func (s *Service) ReplayPending(ctx context.Context) int {
	return s.replay.ProcessDue(ctx, s.replaySale)
}

func (s *Service) replaySale(ctx context.Context, job syncqueue.Job) error {
	ctx = WithActor(ctx, job.Actor)
	st, actor, err := s.authorizeStore(ctx, job.StoreID)
	if err != nil {
		if isPermanentSaleError(err) {
			return syncqueue.Permanent(err)
		}
		return err
	}

	result, err := s.postSale(ctx, st, actor, job.Sale)
	if err != nil {
		if isPermanentSaleError(err) {
			return syncqueue.Permanent(err)
		}
		return err
	}
	s.log.Infow("offline sale replayed", "store_id", st.ID, "offline_id", job.OfflineID, "transaction_id", result.Transaction.ID, "duplicate", result.Duplicate, "attempt", job.Attempts)
	return nil
}

func isPermanentSaleError(err error) bool {
	return errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, store.ErrInsufficientStock) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrConflict) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthenticated)
}
