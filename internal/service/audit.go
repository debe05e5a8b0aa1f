package service

import (
	"context"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/syncqueue"
)

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, limit int) ([]domain.AuditLog, error) {
	st, _, err := s.authorizeStore(ctx, storeID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, st.ID, limit)
}

// ListDeadLetters returns offline sales that exhausted their replays, limited
// to the caller's stores.
func (s *Service) ListDeadLetters(ctx context.Context) ([]syncqueue.DeadLetter, error) {
	actor, err := requireRole(ctx, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return s.replay.DeadLetters(actor.CanAccessStore), nil
}

// CurrentUser returns the stored account behind the caller's token.
func (s *Service) CurrentUser(ctx context.Context) (domain.User, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if !user.Active {
		return domain.User{}, ErrUnauthenticated
	}
	return *user, nil
}
