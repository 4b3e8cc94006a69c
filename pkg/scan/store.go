package scan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store records scan events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a scan Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RecordParent inserts a parent-bag scan event.
func (s *Store) RecordParent(ctx context.Context, userID, parentBagID uuid.UUID, responseTimeMS float64) (Scan, error) {
	return s.record(ctx, userID, &parentBagID, nil, responseTimeMS)
}

// RecordChild inserts a child-bag scan event.
func (s *Store) RecordChild(ctx context.Context, userID, childBagID uuid.UUID, responseTimeMS float64) (Scan, error) {
	return s.record(ctx, userID, nil, &childBagID, responseTimeMS)
}

func (s *Store) record(ctx context.Context, userID uuid.UUID, parentID, childID *uuid.UUID, responseTimeMS float64) (Scan, error) {
	var sc Scan
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scans (user_id, parent_bag_id, child_bag_id, response_time_ms)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, parent_bag_id, child_bag_id, response_time_ms, created_at`,
		userID, parentID, childID, responseTimeMS,
	).Scan(&sc.ID, &sc.UserID, &sc.ParentBagID, &sc.ChildBagID, &sc.ResponseTimeMS, &sc.CreatedAt)
	if err != nil {
		return Scan{}, fmt.Errorf("recording scan: %w", err)
	}
	return sc, nil
}

// CountForUserSince counts how many scans userID has recorded in the last
// sinceSeconds seconds.
func (s *Store) CountForUserSince(ctx context.Context, userID uuid.UUID, sinceSeconds int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM scans
		WHERE user_id = $1 AND created_at >= now() - ($2 || ' seconds')::interval`,
		userID, sinceSeconds,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recent scans: %w", err)
	}
	return count, nil
}
