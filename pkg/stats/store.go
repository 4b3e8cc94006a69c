package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads and reconciles the statistics cache.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a stats Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get reads the single cached statistics row.
func (s *Store) Get(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT total_bags, parent_bags, child_bags, total_links, total_scans,
		       scans_today, scans_this_hour, active_users_today, last_updated
		FROM statistics_cache WHERE id = 1`,
	).Scan(
		&snap.TotalBags, &snap.ParentBags, &snap.ChildBags, &snap.TotalLinks, &snap.TotalScans,
		&snap.ScansToday, &snap.ScansThisHour, &snap.ActiveUsersToday, &snap.LastUpdated,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading statistics cache: %w", err)
	}
	return snap, nil
}

// computeTrue derives the ground-truth snapshot directly from the source
// tables, independent of the incremental triggers that normally maintain
// statistics_cache.
func (s *Store) computeTrue(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM bags WHERE deleted_at IS NULL) AS total_bags,
			(SELECT count(*) FROM bags WHERE deleted_at IS NULL AND type = 'parent') AS parent_bags,
			(SELECT count(*) FROM bags WHERE deleted_at IS NULL AND type = 'child') AS child_bags,
			(SELECT count(*) FROM links) AS total_links,
			(SELECT count(*) FROM scans) AS total_scans,
			(SELECT count(*) FROM scans WHERE created_at >= date_trunc('day', now())) AS scans_today,
			(SELECT count(*) FROM scans WHERE created_at >= date_trunc('hour', now())) AS scans_this_hour,
			(SELECT count(DISTINCT user_id) FROM scans WHERE created_at >= date_trunc('day', now())) AS active_users_today`,
	).Scan(
		&snap.TotalBags, &snap.ParentBags, &snap.ChildBags, &snap.TotalLinks, &snap.TotalScans,
		&snap.ScansToday, &snap.ScansThisHour, &snap.ActiveUsersToday,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("computing true statistics: %w", err)
	}
	return snap, nil
}

// overwrite replaces the cached row with snap, as corrected by reconciliation.
func (s *Store) overwrite(ctx context.Context, snap Snapshot) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE statistics_cache SET
			total_bags = $1, parent_bags = $2, child_bags = $3, total_links = $4,
			total_scans = $5, scans_today = $6, scans_this_hour = $7,
			active_users_today = $8, last_updated = now()
		WHERE id = 1`,
		snap.TotalBags, snap.ParentBags, snap.ChildBags, snap.TotalLinks,
		snap.TotalScans, snap.ScansToday, snap.ScansThisHour, snap.ActiveUsersToday,
	)
	if err != nil {
		return fmt.Errorf("overwriting statistics cache: %w", err)
	}
	return nil
}
