package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/metrics"
)

const (
	dashboardRecentLimit = 5
	reportTopProducts    = 5
)

// Dashboard summarises today's activity in the store's time zone.
func (s *Service) Dashboard(ctx context.Context, storeID string) (domain.DashboardStats, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	cached, ok, err := s.cache.Get(ctx, st.ID)
	switch {
	case err != nil:
		logger.Warn(ctx, "dashboard cache read failed", "store_id", st.ID, "error", err)
		metrics.DashboardCacheTotal.WithLabelValues("error").Inc()
	case ok && cached != nil:
		metrics.DashboardCacheTotal.WithLabelValues("hit").Inc()
		return *cached, nil
	default:
		metrics.DashboardCacheTotal.WithLabelValues("miss").Inc()
	}

	now := s.now()
	from, to := dayBounds(now, st.Location())
	stats := domain.DashboardStats{StoreID: st.ID, Date: from.Format("2006-01-02"), GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.repo.SalesSummary(gctx, st.ID, from, to)
		if err != nil {
			return err
		}
		stats.DailySales = summary.Revenue
		stats.TransactionCount = summary.Transactions
		return nil
	})
	g.Go(func() error {
		total, err := s.repo.OutstandingDebt(gctx, st.ID)
		stats.TotalDebt = total
		return err
	})
	g.Go(func() error {
		count, err := s.repo.CountLowStock(gctx, st.ID, st.LowStockThreshold)
		stats.LowStockCount = count
		return err
	})
	g.Go(func() error {
		recent, err := s.repo.ListTransactions(gctx, st.ID, domain.TransactionFilter{Limit: dashboardRecentLimit})
		stats.RecentTransactions = recent
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}
	if stats.RecentTransactions == nil {
		stats.RecentTransactions = []domain.Transaction{}
	}

	if s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, st.ID, &stats, s.cacheTTL); err != nil {
			logger.Warn(ctx, "dashboard cache write failed", "store_id", st.ID, "error", err)
		}
	}
	return stats, nil
}

// SalesReport aggregates the half-open range [from, to). Bare dates are read in
// the store's time zone and the to date is inclusive.
func (s *Service) SalesReport(ctx context.Context, storeID string, fromRaw string, toRaw string) (domain.SalesReport, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return domain.SalesReport{}, err
	}
	from, to, err := ParseRange(fromRaw, toRaw, st.Location())
	if err != nil {
		return domain.SalesReport{}, err
	}

	var (
		summary  domain.SalesSummary
		top      []domain.ProductSales
		payments []domain.PaymentMethodSales
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = s.repo.SalesSummary(gctx, st.ID, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		top, err = s.repo.TopProducts(gctx, st.ID, from, to, reportTopProducts)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.repo.PaymentMethodBreakdown(gctx, st.ID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.SalesReport{}, err
	}

	average := decimal.Zero
	if summary.PaidTransactions > 0 {
		average = summary.Revenue.Div(decimal.NewFromInt(int64(summary.PaidTransactions))).Round(2)
	}
	if top == nil {
		top = []domain.ProductSales{}
	}
	if payments == nil {
		payments = []domain.PaymentMethodSales{}
	}

	return domain.SalesReport{
		StoreID:            st.ID,
		From:               from,
		To:                 to,
		TotalRevenue:       summary.Revenue,
		TotalTransactions:  summary.Transactions,
		GrossProfit:        summary.Revenue.Sub(summary.Tax).Sub(summary.CostOfGoods),
		AverageTransaction: average,
		TopProducts:        top,
		PaymentMethods:     payments,
	}, nil
}

// ParseRange turns query bounds into a half-open UTC range. Each bound is a
// YYYY-MM-DD date in loc or an RFC3339 timestamp; a date used as the upper
// bound covers the whole day.
func ParseRange(fromRaw string, toRaw string, loc *time.Location) (time.Time, time.Time, error) {
	fromRaw, toRaw = strings.TrimSpace(fromRaw), strings.TrimSpace(toRaw)
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, invalidf("from and to are required")
	}
	from, _, err := parseBound(fromRaw, loc)
	if err != nil {
		return time.Time{}, time.Time{}, invalidf("from: %v", err)
	}
	to, isDate, err := parseBound(toRaw, loc)
	if err != nil {
		return time.Time{}, time.Time{}, invalidf("to: %v", err)
	}
	if isDate {
		to = to.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, invalidf("from must be before to")
	}
	return from.UTC(), to.UTC(), nil
}

// FilterRange resolves optional list bounds the same way ParseRange does,
// using the store's zone for plain dates. Missing bounds stay nil.
func (s *Service) FilterRange(ctx context.Context, storeID string, fromRaw string, toRaw string) (*time.Time, *time.Time, error) {
	fromRaw, toRaw = strings.TrimSpace(fromRaw), strings.TrimSpace(toRaw)
	if fromRaw == "" && toRaw == "" {
		return nil, nil, nil
	}
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}
	loc := st.Location()

	var from, to *time.Time
	if fromRaw != "" {
		t, _, err := parseBound(fromRaw, loc)
		if err != nil {
			return nil, nil, invalidf("from: %v", err)
		}
		t = t.UTC()
		from = &t
	}
	if toRaw != "" {
		t, isDate, err := parseBound(toRaw, loc)
		if err != nil {
			return nil, nil, invalidf("to: %v", err)
		}
		if isDate {
			t = t.AddDate(0, 0, 1)
		}
		t = t.UTC()
		to = &t
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, invalidf("from must be before to")
	}
	return from, to, nil
}

func parseBound(raw string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}

func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
