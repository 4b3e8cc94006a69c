package bag

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

// Store provides database operations for bags and links.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a bag Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new bag. A duplicate qr_id is reported as a conflict.
func (s *Store) Create(ctx context.Context, qrID, bagType, notes string, ownerID *uuid.UUID) (Bag, error) {
	var b Bag
	err := s.pool.QueryRow(ctx, `
		INSERT INTO bags (qr_id, type, owner_id, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, qr_id, type, owner_id, coalesce(notes, ''), created_at`,
		qrID, bagType, ownerID, notes,
	).Scan(&b.ID, &b.QRID, &b.Type, &b.OwnerID, &b.Notes, &b.CreatedAt)
	if err != nil {
		if platform.IsUniqueViolation(err) {
			return Bag{}, tterr.Conflict(fmt.Sprintf("a bag with qr_id %q already exists", qrID))
		}
		return Bag{}, fmt.Errorf("creating bag: %w", err)
	}
	return b, nil
}

// GetByQRID fetches a bag by its QR identifier, including its parent link
// (if it is a linked child).
func (s *Store) GetByQRID(ctx context.Context, qrID string) (Bag, error) {
	var b Bag
	err := s.pool.QueryRow(ctx, `
		SELECT b.id, b.qr_id, b.type, b.owner_id, coalesce(b.notes, ''), b.created_at, l.parent_id
		FROM bags b
		LEFT JOIN links l ON l.child_id = b.id
		WHERE b.qr_id = $1 AND b.deleted_at IS NULL`, qrID,
	).Scan(&b.ID, &b.QRID, &b.Type, &b.OwnerID, &b.Notes, &b.CreatedAt, &b.ParentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bag{}, tterr.NotFound("bag not found")
	}
	if err != nil {
		return Bag{}, fmt.Errorf("getting bag: %w", err)
	}
	return b, nil
}

// GetOrCreateByQRID fetches a bag by QR id, creating it as bagType (owned by
// ownerID) on first sight. The scan pipeline uses this instead of GetByQRID:
// an unrecognized QR code names a bag that does not exist yet, not an error.
func (s *Store) GetOrCreateByQRID(ctx context.Context, qrID, bagType string, ownerID *uuid.UUID) (Bag, error) {
	b, err := s.GetByQRID(ctx, qrID)
	if err == nil {
		return b, nil
	}
	if tterr.KindOf(err) != tterr.KindNotFound {
		return Bag{}, err
	}

	b, err = s.Create(ctx, qrID, bagType, "", ownerID)
	if tterr.KindOf(err) == tterr.KindConflict {
		// Lost a race with a concurrent scanner creating the same bag.
		return s.GetByQRID(ctx, qrID)
	}
	return b, err
}

// LinkBatch links each bag in childIDs under parentID within a single
// transaction, used by the scan pipeline's finish_scanning step. A child
// already linked to a different parent aborts the whole batch with a
// conflict naming that parent's qr_id; a child already linked to parentID
// itself is left alone.
func (s *Store) LinkBatch(ctx context.Context, parentID uuid.UUID, childIDs []uuid.UUID, creatorID *uuid.UUID) error {
	if len(childIDs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, childID := range childIDs {
		var existingParent uuid.UUID
		var existingQR string
		err := tx.QueryRow(ctx, `
			SELECT l.parent_id, p.qr_id
			FROM links l
			JOIN bags p ON p.id = l.parent_id
			WHERE l.child_id = $1
			FOR UPDATE OF l`, childID,
		).Scan(&existingParent, &existingQR)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("checking existing link: %w", err)
		}
		if err == nil {
			if existingParent == parentID {
				continue
			}
			return tterr.Conflict(fmt.Sprintf("child bag is already linked to parent %q", existingQR))
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO links (parent_id, child_id, creator_id) VALUES ($1, $2, $3)`,
			parentID, childID, creatorID,
		); err != nil {
			if platform.IsForeignKeyViolation(err) {
				return tterr.Validation("parent or child bag does not exist")
			}
			return fmt.Errorf("linking bags: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID fetches a bag by its primary key.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Bag, error) {
	var b Bag
	err := s.pool.QueryRow(ctx, `
		SELECT b.id, b.qr_id, b.type, b.owner_id, coalesce(b.notes, ''), b.created_at, l.parent_id
		FROM bags b
		LEFT JOIN links l ON l.child_id = b.id
		WHERE b.id = $1 AND b.deleted_at IS NULL`, id,
	).Scan(&b.ID, &b.QRID, &b.Type, &b.OwnerID, &b.Notes, &b.CreatedAt, &b.ParentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bag{}, tterr.NotFound("bag not found")
	}
	if err != nil {
		return Bag{}, fmt.Errorf("getting bag: %w", err)
	}
	return b, nil
}

// Link attaches childID under parentID. A child already linked elsewhere
// surfaces as a conflict. Bag types and self-links are not checked here.
func (s *Store) Link(ctx context.Context, parentID, childID uuid.UUID, creatorID *uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO links (parent_id, child_id, creator_id) VALUES ($1, $2, $3)`,
		parentID, childID, creatorID)
	if platform.IsUniqueViolation(err) {
		return tterr.Conflict("child bag is already linked to a parent")
	}
	if platform.IsForeignKeyViolation(err) {
		return tterr.Validation("parent or child bag does not exist")
	}
	if err != nil {
		return fmt.Errorf("linking bags: %w", err)
	}
	return nil
}

// Unlink removes the link between parentID and childID, if present.
func (s *Store) Unlink(ctx context.Context, parentID, childID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM links WHERE parent_id = $1 AND child_id = $2`, parentID, childID)
	if err != nil {
		return fmt.Errorf("unlinking bags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tterr.NotFound("link not found")
	}
	return nil
}

// Delete hard-deletes a bag. Cascading links are removed by the foreign
// key; any bill_bags row referencing the bag blocks the delete (ON DELETE
// RESTRICT) until it is detached from its bill.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bags WHERE id = $1`, id)
	if platform.IsForeignKeyViolation(err) {
		return tterr.Conflict("bag is attached to a bill and cannot be deleted")
	}
	if err != nil {
		return fmt.Errorf("deleting bag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tterr.NotFound("bag not found")
	}
	return nil
}

// ChildrenOf lists the children currently linked under parentID.
func (s *Store) ChildrenOf(ctx context.Context, parentID uuid.UUID) ([]Bag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.qr_id, b.type, b.owner_id, coalesce(b.notes, ''), b.created_at, l.parent_id
		FROM links l
		JOIN bags b ON b.id = l.child_id
		WHERE l.parent_id = $1 AND b.deleted_at IS NULL
		ORDER BY l.created_at`, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing children: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Bag, error) {
		var b Bag
		err := row.Scan(&b.ID, &b.QRID, &b.Type, &b.OwnerID, &b.Notes, &b.CreatedAt, &b.ParentID)
		return b, err
	})
}
