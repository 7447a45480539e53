package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
)

// SnapshotSource is the part of the API client a dashboard reads from.
type SnapshotSource interface {
	ListTransactions(ctx context.Context, cred api.Credentials) ([]core.Transaction, error)
	ListTags(ctx context.Context, cred api.Credentials) ([]core.Tag, error)
}

// Dashboard is one consistent snapshot of a user's data and its summary.
type Dashboard struct {
	Transactions []core.Transaction
	Tags         []core.Tag
	Stats        core.SummaryStatistics
	FetchedAt    time.Time
}

// Recent returns up to n transactions, newest first.
func (d Dashboard) Recent(n int) []core.Transaction {
	txs := make([]core.Transaction, len(d.Transactions))
	copy(txs, d.Transactions)
	SortByDateDesc(txs)
	if n >= 0 && len(txs) > n {
		txs = txs[:n]
	}
	return txs
}

// DashboardMetrics is exposed on /metrics.
type DashboardMetrics struct {
	Snapshots uint64
	Shared    uint64
	Anomalies uint64
}

// DashboardService builds per-user dashboard snapshots. Every call fetches
// and summarizes anew; only callers that overlap with a fetch already in
// flight for the same credentials share its result.
type DashboardService struct {
	src    SnapshotSource
	flight singleflight.Group
	logger *log.Logger
	now    func() time.Time

	mu          sync.Mutex
	generations map[string]uint64

	snapshots atomic.Uint64
	shared    atomic.Uint64
	anomalies atomic.Uint64
}

func NewDashboardService(src SnapshotSource, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DashboardService{
		src:         src,
		logger:      logger.WithComponent(log.ComponentDashboard),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

// Snapshot returns the user's dashboard. Transactions and tags are fetched
// concurrently and both must succeed; there are no partial statistics.
func (s *DashboardService) Snapshot(ctx context.Context, cred api.Credentials) (Dashboard, error) {
	// The fetch outlives a caller that gives up, so joined callers are not
	// failed by someone else's cancellation. The API client bounds it.
	ch := s.flight.DoChan(s.flightKey(cred), func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), cred)
	})
	select {
	case <-ctx.Done():
		return Dashboard{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.shared.Add(1)
		}
		if res.Err != nil {
			return Dashboard{}, res.Err
		}
		return res.Val.(Dashboard), nil
	}
}

func (s *DashboardService) fetch(ctx context.Context, cred api.Credentials) (Dashboard, error) {
	var (
		txs  []core.Transaction
		tags []core.Tag
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.src.ListTransactions(gctx, cred)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = s.src.ListTags(gctx, cred)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return Dashboard{}, api.ErrUnauthorized
		}
		s.logger.ErrorContext(ctx, "Failed to load dashboard",
			log.FieldUserID, cred.UserID,
			log.FieldError, err)
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	stats := core.Summarize(txs, len(tags))
	for _, a := range stats.Anomalies {
		s.anomalies.Add(1)
		s.logger.WarnContext(ctx, "Transaction amount could not be parsed, counted as zero",
			log.FieldUserID, cred.UserID,
			log.FieldTransactionID, a.TransactionID,
			log.FieldRawAmount, a.Raw,
			log.FieldError, a.Err)
	}
	s.snapshots.Add(1)

	s.logger.DebugContext(ctx, "Dashboard snapshot built",
		log.FieldUserID, cred.UserID,
		log.FieldOperation, log.OpSummarize,
		log.FieldCount, stats.TotalTransactions)
	return Dashboard{Transactions: txs, Tags: tags, Stats: stats, FetchedAt: s.now()}, nil
}

// flightKey separates tokens so one session's 401 is never handed to
// another, and changes on Invalidate so later callers cannot join a fetch
// that started before the mutation.
func (s *DashboardService) flightKey(cred api.Credentials) string {
	s.mu.Lock()
	gen := s.generations[cred.UserID]
	s.mu.Unlock()
	return cred.UserID + "\x00" + strconv.FormatUint(gen, 10) + "\x00" + cred.Token
}

// Invalidate makes the next Snapshot of userID start a fresh fetch even if
// one is still in flight.
func (s *DashboardService) Invalidate(userID string) {
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
}

func (s *DashboardService) Metrics() DashboardMetrics {
	return DashboardMetrics{
		Snapshots: s.snapshots.Load(),
		Shared:    s.shared.Load(),
		Anomalies: s.anomalies.Load(),
	}
}

// SortByDateDesc orders transactions newest first, keeping API order for ties.
func SortByDateDesc(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date.Time)
	})
}
