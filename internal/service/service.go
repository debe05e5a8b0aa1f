package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/notify"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/syncqueue"
	"warungpos/backend/internal/xid"
)

//go:generate mockgen -destination=mocks_test.go -package=service . EventPublisher,Notifier

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// EventPublisher receives domain events after the change they describe is committed.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Notifier delivers debt reminders to customers.
type Notifier interface {
	SendDebtReminder(ctx context.Context, reminder notify.Reminder) error
}

type Options struct {
	Cache     cache.DashboardCache
	CacheTTL  time.Duration
	Publisher EventPublisher
	Notifier  Notifier
	Replay    syncqueue.Config
	Now       func() time.Time
	Logger    *logger.Logger
}

type Service struct {
	repo      store.Repository
	cache     cache.DashboardCache
	cacheTTL  time.Duration
	publisher EventPublisher
	notifier  Notifier
	replay    *syncqueue.Queue
	now       func() time.Time
	log       *logger.Logger
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NoopDashboardCache{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewWhatsAppMock(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:      repo,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		replay:    syncqueue.New(opts.Replay, opts.Now),
		now:       func() time.Time { return opts.Now().UTC() },
		log:       opts.Logger.WithComponent("service"),
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Actor{}, ErrUnauthenticated
	}
	return actor, nil
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("%w: %s role required", ErrForbidden, strings.Join(roles, " or "))
}

// authorizeStore loads the store and checks the caller may act on it.
func (s *Service) authorizeStore(ctx context.Context, storeID string, roles ...string) (*domain.Store, domain.Actor, error) {
	var (
		actor domain.Actor
		err   error
	)
	if len(roles) > 0 {
		actor, err = requireRole(ctx, roles...)
	} else {
		actor, err = requireActor(ctx)
	}
	if err != nil {
		return nil, domain.Actor{}, err
	}

	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, domain.Actor{}, fmt.Errorf("%w: store id is required", store.ErrInvalidInput)
	}
	if !actor.CanAccessStore(storeID) {
		return nil, domain.Actor{}, fmt.Errorf("%w: no access to store %s", ErrForbidden, storeID)
	}
	st, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return nil, domain.Actor{}, err
	}
	return st, actor, nil
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	userID := actor.UserID
	if !ok || userID == "" {
		userID = "system"
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New(),
		StoreID:    storeID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}); err != nil {
		logger.Warn(ctx, "failed to write audit log", "action", action, "entity", entityType+"/"+entityID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "failed to publish event", "type", event.Type, "entity_id", event.EntityID, "error", err)
	}
}

func (s *Service) invalidateDashboard(ctx context.Context, storeID string) {
	if err := s.cache.Invalidate(ctx, storeID); err != nil {
		logger.Warn(ctx, "failed to invalidate dashboard cache", "store_id", storeID, "error", err)
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodTransfer, domain.PaymentMethodQRIS, domain.PaymentMethodEWallet:
		return true
	default:
		return false
	}
}

func isPaymentStatus(status string) bool {
	switch status {
	case domain.PaymentStatusPaid, domain.PaymentStatusUnpaid, domain.PaymentStatusPartial:
		return true
	default:
		return false
	}
}
