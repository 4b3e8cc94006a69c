package bill

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracetrack/tracetrack/internal/platform"
	"github.com/tracetrack/tracetrack/internal/tterr"
)

// Store provides database operations for bills.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a bill Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new bill in the empty state.
func (s *Store) Create(ctx context.Context, billID string, parentBagCount int, expectedWeightKG float64, creatorID *uuid.UUID) (Bill, error) {
	var b Bill
	err := s.pool.QueryRow(ctx, `
		INSERT INTO bills (bill_id, parent_bag_count, expected_weight_kg, creator_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, bill_id, parent_bag_count, total_weight_kg, expected_weight_kg, status, created_at`,
		billID, parentBagCount, expectedWeightKG, creatorID,
	).Scan(&b.ID, &b.BillID, &b.ParentBagCount, &b.TotalWeightKG, &b.ExpectedWeightKG, &b.Status, &b.CreatedAt)
	if platform.IsUniqueViolation(err) {
		return Bill{}, tterr.Conflict(fmt.Sprintf("a bill with bill_id %q already exists", billID))
	}
	if err != nil {
		return Bill{}, fmt.Errorf("creating bill: %w", err)
	}
	return b, nil
}

// Get fetches a bill by its primary key, including the IDs of attached bags.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Bill, error) {
	var b Bill
	err := s.pool.QueryRow(ctx, `
		SELECT id, bill_id, parent_bag_count, total_weight_kg, expected_weight_kg, status, created_at
		FROM bills WHERE id = $1`, id,
	).Scan(&b.ID, &b.BillID, &b.ParentBagCount, &b.TotalWeightKG, &b.ExpectedWeightKG, &b.Status, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, tterr.NotFound("bill not found")
	}
	if err != nil {
		return Bill{}, fmt.Errorf("getting bill: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT bag_id FROM bill_bags WHERE bill_id = $1 ORDER BY attached_at`, id)
	if err != nil {
		return Bill{}, fmt.Errorf("listing attached bags: %w", err)
	}
	defer rows.Close()

	b.AttachedBagIDs, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return Bill{}, fmt.Errorf("scanning attached bags: %w", err)
	}
	if b.AttachedBagIDs == nil {
		b.AttachedBagIDs = []uuid.UUID{}
	}

	return b, nil
}

// Attach adds bagID to billID and bumps the bill's total weight and status.
// The partial unique index on bill_bags(bag_id) (open bills only) is what
// enforces "at most one open bill per parent bag" — a violation surfaces
// as a conflict rather than a constraint-name leak.
func (s *Store) Attach(ctx context.Context, billID, bagID uuid.UUID, weightKG float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM bills WHERE id = $1 FOR UPDATE`, billID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tterr.NotFound("bill not found")
		}
		return fmt.Errorf("locking bill: %w", err)
	}
	if status == StatusCompleted {
		return tterr.Conflict("bill is already finalized")
	}

	if _, err := tx.Exec(ctx, `INSERT INTO bill_bags (bill_id, bag_id) VALUES ($1, $2)`, billID, bagID); err != nil {
		if platform.IsUniqueViolation(err) {
			return tterr.Conflict("bag is already attached to an open bill")
		}
		if platform.IsForeignKeyViolation(err) {
			return tterr.Validation("bag does not exist")
		}
		return fmt.Errorf("attaching bag: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bills SET status = 'in_progress'
		WHERE id = $1 AND status = 'empty'`, billID); err != nil {
		return fmt.Errorf("updating bill on empty->in_progress: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE bills SET total_weight_kg = total_weight_kg + $1
		WHERE id = $2 AND status = 'in_progress'`, weightKG, billID); err != nil {
		return fmt.Errorf("updating bill weight: %w", err)
	}

	return tx.Commit(ctx)
}

// Detach removes bagID from billID and reverses the weight contribution.
func (s *Store) Detach(ctx context.Context, billID, bagID uuid.UUID, weightKG float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM bills WHERE id = $1 FOR UPDATE`, billID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tterr.NotFound("bill not found")
		}
		return fmt.Errorf("locking bill: %w", err)
	}
	if status == StatusCompleted {
		return tterr.Conflict("bill is already finalized")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM bill_bags WHERE bill_id = $1 AND bag_id = $2`, billID, bagID)
	if err != nil {
		return fmt.Errorf("detaching bag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tterr.NotFound("bag is not attached to this bill")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bills SET total_weight_kg = greatest(total_weight_kg - $1, 0) WHERE id = $2`, weightKG, billID); err != nil {
		return fmt.Errorf("reversing bill weight: %w", err)
	}

	var remaining int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM bill_bags WHERE bill_id = $1`, billID).Scan(&remaining); err != nil {
		return fmt.Errorf("counting remaining bags: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `UPDATE bills SET status = 'empty' WHERE id = $1`, billID); err != nil {
			return fmt.Errorf("reverting bill to empty: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Finalize transitions a bill to completed. Once completed, bags attached
// to it stop counting toward "at most one open bill" for future attaches.
func (s *Store) Finalize(ctx context.Context, billID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bills SET status = 'completed'
		WHERE id = $1 AND status = 'in_progress'`, billID)
	if err != nil {
		return fmt.Errorf("finalizing bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tterr.Conflict("bill must be in_progress to finalize")
	}
	return nil
}

// Delete removes an empty bill. Non-empty bills must be fully detached first.
func (s *Store) Delete(ctx context.Context, billID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bills WHERE id = $1 AND status = 'empty'`, billID)
	if err != nil {
		return fmt.Errorf("deleting bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tterr.Conflict("only an empty bill can be deleted")
	}
	return nil
}
