package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tracetrack/tracetrack/internal/auth"
	"github.com/tracetrack/tracetrack/internal/telemetry"
)

const cacheTTL = 30 * time.Second

// View is a role-scoped projection of Snapshot. Dispatchers see the
// operational throughput numbers they act on; billers additionally see the
// billing-relevant parent/child split; admins see everything.
type View struct {
	TotalBags        int64     `json:"total_bags"`
	ScansToday       int64     `json:"scans_today"`
	ScansThisHour    int64     `json:"scans_this_hour"`
	ParentBags       *int64    `json:"parent_bags,omitempty"`
	ChildBags        *int64    `json:"child_bags,omitempty"`
	TotalLinks       *int64    `json:"total_links,omitempty"`
	TotalScans       *int64    `json:"total_scans,omitempty"`
	ActiveUsersToday *int64    `json:"active_users_today,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`
}

type cacheEntry struct {
	view      View
	expiresAt time.Time
}

// Service serves role-scoped statistics views with a short-lived cache, and
// periodically reconciles statistics_cache against ground truth.
type Service struct {
	store *Store

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewService creates a stats Service.
func NewService(store *Store) *Service {
	return &Service{store: store, cache: make(map[string]cacheEntry)}
}

// ForRole returns the cached (or freshly read) statistics view scoped to role.
func (s *Service) ForRole(ctx context.Context, role string) (View, error) {
	s.mu.Lock()
	if entry, ok := s.cache[role]; ok && time.Now().Before(entry.expiresAt) {
		s.mu.Unlock()
		return entry.view, nil
	}
	s.mu.Unlock()

	snap, err := s.store.Get(ctx)
	if err != nil {
		return View{}, err
	}
	view := projectView(snap, role)

	s.mu.Lock()
	s.cache[role] = cacheEntry{view: view, expiresAt: time.Now().Add(cacheTTL)}
	s.mu.Unlock()

	return view, nil
}

func projectView(snap Snapshot, role string) View {
	v := View{
		TotalBags:     snap.TotalBags,
		ScansToday:    snap.ScansToday,
		ScansThisHour: snap.ScansThisHour,
		LastUpdated:   snap.LastUpdated,
	}
	if role == auth.RoleAdmin || role == auth.RoleBiller {
		v.ParentBags = &snap.ParentBags
		v.ChildBags = &snap.ChildBags
	}
	if role == auth.RoleAdmin {
		v.TotalLinks = &snap.TotalLinks
		v.TotalScans = &snap.TotalScans
		v.ActiveUsersToday = &snap.ActiveUsersToday
	}
	return v
}

// Reconcile recomputes ground-truth counts and overwrites statistics_cache
// wherever it has drifted from the incremental triggers, recording the
// corrected drift per counter.
func (s *Service) Reconcile(ctx context.Context) error {
	cached, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading cached statistics: %w", err)
	}
	truth, err := s.store.computeTrue(ctx)
	if err != nil {
		return fmt.Errorf("computing true statistics: %w", err)
	}

	recordDrift("total_bags", cached.TotalBags, truth.TotalBags)
	recordDrift("parent_bags", cached.ParentBags, truth.ParentBags)
	recordDrift("child_bags", cached.ChildBags, truth.ChildBags)
	recordDrift("total_links", cached.TotalLinks, truth.TotalLinks)
	recordDrift("total_scans", cached.TotalScans, truth.TotalScans)
	recordDrift("scans_today", cached.ScansToday, truth.ScansToday)
	recordDrift("scans_this_hour", cached.ScansThisHour, truth.ScansThisHour)
	recordDrift("active_users_today", cached.ActiveUsersToday, truth.ActiveUsersToday)

	if statsEqual(cached, truth) {
		return nil
	}
	if err := s.store.overwrite(ctx, truth); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.mu.Unlock()

	return nil
}

// statsEqual compares the counter fields only; LastUpdated is never part of
// computeTrue's result, so it is excluded from the comparison.
func statsEqual(a, b Snapshot) bool {
	return a.TotalBags == b.TotalBags &&
		a.ParentBags == b.ParentBags &&
		a.ChildBags == b.ChildBags &&
		a.TotalLinks == b.TotalLinks &&
		a.TotalScans == b.TotalScans &&
		a.ScansToday == b.ScansToday &&
		a.ScansThisHour == b.ScansThisHour &&
		a.ActiveUsersToday == b.ActiveUsersToday
}

func recordDrift(counter string, cached, truth int64) {
	d := truth - cached
	if d < 0 {
		d = -d
	}
	telemetry.StatsReconcileDrift.WithLabelValues(counter).Set(float64(d))
}

// RunReconcileLoop runs Reconcile periodically until ctx is cancelled.
func (s *Service) RunReconcileLoop(ctx context.Context, logger *slog.Logger, interval time.Duration) {
	logger.Info("statistics reconciliation loop started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.Reconcile(ctx); err != nil {
		logger.Error("initial statistics reconciliation", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("statistics reconciliation loop stopped")
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				logger.Error("statistics reconciliation", "error", err)
			}
		}
	}
}
