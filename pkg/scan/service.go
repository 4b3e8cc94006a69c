package scan

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tracetrack/tracetrack/internal/tterr"
	"github.com/tracetrack/tracetrack/internal/telemetry"
	"github.com/tracetrack/tracetrack/pkg/bag"
)

// Service implements the scan pipeline business rules: resolving a QR code
// to a bag, suppressing duplicate scans within the dedup window, and
// tracking a per-user in-progress scanning session.
type Service struct {
	store  *Store
	bags   *bag.Store
	rdb    *redis.Client
	sessMu sync.Mutex
	sess   map[uuid.UUID]*sessionBuffer
}

// sessionBuffer tracks the bags scanned by a user in the current,
// not-yet-finished scanning session (one parent plus its children).
type sessionBuffer struct {
	mu        sync.Mutex
	ParentID  *uuid.UUID
	ChildIDs  []uuid.UUID
}

// NewService creates a scan Service.
func NewService(store *Store, bags *bag.Store, rdb *redis.Client) *Service {
	return &Service{
		store: store,
		bags:  bags,
		rdb:   rdb,
		sess:  make(map[uuid.UUID]*sessionBuffer),
	}
}

// ScanParent resolves qrID to a parent bag, records the scan (unless it is
// a duplicate within the dedup window), and opens a new session buffer for
// userID, replacing any prior unfinished one.
func (s *Service) ScanParent(ctx context.Context, userID uuid.UUID, qrID string, responseTimeMS float64) (Scan, error) {
	b, err := s.bags.GetOrCreateByQRID(ctx, qrID, bag.TypeParent, &userID)
	if err != nil {
		return Scan{}, err
	}
	if b.Type != bag.TypeParent {
		return Scan{}, tterr.Validation("qr_id does not belong to a parent bag")
	}

	dup, err := s.isDuplicate(ctx, userID, qrID)
	if err != nil {
		return Scan{}, err
	}
	if dup {
		telemetry.ScanDuplicatesSuppressedTotal.Inc()
		return Scan{}, tterr.Conflict("duplicate scan suppressed")
	}

	sc, err := s.store.RecordParent(ctx, userID, b.ID, responseTimeMS)
	if err != nil {
		telemetry.ScansTotal.WithLabelValues("parent", "error").Inc()
		return Scan{}, err
	}
	telemetry.ScansTotal.WithLabelValues("parent", "ok").Inc()

	buf := s.bufferFor(userID)
	buf.mu.Lock()
	buf.ParentID = &b.ID
	buf.ChildIDs = nil
	buf.mu.Unlock()

	return sc, nil
}

// ScanChild resolves qrID to a child bag (creating it on first sight) and
// records the scan, appending the bag to userID's open session buffer. The
// child is linked to the open parent at Finish time, not here.
func (s *Service) ScanChild(ctx context.Context, userID uuid.UUID, qrID string, responseTimeMS float64) (Scan, error) {
	b, err := s.bags.GetOrCreateByQRID(ctx, qrID, bag.TypeChild, &userID)
	if err != nil {
		return Scan{}, err
	}
	if b.Type != bag.TypeChild {
		return Scan{}, tterr.Validation("qr_id does not belong to a child bag")
	}

	buf := s.bufferFor(userID)
	buf.mu.Lock()
	parentID := buf.ParentID
	buf.mu.Unlock()
	if parentID == nil {
		return Scan{}, tterr.Validation("no parent bag scanned for this session")
	}

	dup, err := s.isDuplicate(ctx, userID, qrID)
	if err != nil {
		return Scan{}, err
	}
	if dup {
		telemetry.ScanDuplicatesSuppressedTotal.Inc()
		return Scan{}, tterr.Conflict("duplicate scan suppressed")
	}

	sc, err := s.store.RecordChild(ctx, userID, b.ID, responseTimeMS)
	if err != nil {
		telemetry.ScansTotal.WithLabelValues("child", "error").Inc()
		return Scan{}, err
	}
	telemetry.ScansTotal.WithLabelValues("child", "ok").Inc()

	buf.mu.Lock()
	buf.ChildIDs = append(buf.ChildIDs, b.ID)
	buf.mu.Unlock()

	return sc, nil
}

// FinishResult summarizes a completed scanning session.
type FinishResult struct {
	ParentID *uuid.UUID  `json:"parent_id,omitempty"`
	ChildIDs []uuid.UUID `json:"child_ids"`
}

// Finish closes userID's open session buffer. If a parent was scanned, each
// buffered child is linked under it in a single transaction: a child already
// linked to a different parent aborts the whole batch with a conflict naming
// that parent, and nothing is committed. On success the buffer is cleared and
// a summary of what was linked is returned.
func (s *Service) Finish(ctx context.Context, userID uuid.UUID) (FinishResult, error) {
	buf := s.bufferFor(userID)
	buf.mu.Lock()
	parentID := buf.ParentID
	childIDs := buf.ChildIDs
	buf.mu.Unlock()

	result := FinishResult{ParentID: parentID, ChildIDs: childIDs}
	if result.ChildIDs == nil {
		result.ChildIDs = []uuid.UUID{}
	}

	if parentID != nil && len(childIDs) > 0 {
		if err := s.bags.LinkBatch(ctx, *parentID, childIDs, &userID); err != nil {
			return FinishResult{}, err
		}
	}

	buf.mu.Lock()
	buf.ParentID = nil
	buf.ChildIDs = nil
	buf.mu.Unlock()

	return result, nil
}

func (s *Service) bufferFor(userID uuid.UUID) *sessionBuffer {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	buf, ok := s.sess[userID]
	if !ok {
		buf = &sessionBuffer{}
		s.sess[userID] = buf
	}
	return buf
}

// isDuplicate uses Redis SET NX with a short TTL as a distributed lock: the
// first caller within the dedup window wins and everyone else within that
// window is treated as a duplicate, even across multiple server instances.
func (s *Service) isDuplicate(ctx context.Context, userID uuid.UUID, qrID string) (bool, error) {
	key := fmt.Sprintf("scan_dedup:%s:%s", userID, qrID)
	ok, err := s.rdb.SetNX(ctx, key, "1", duplicateWindow).Result()
	if err != nil {
		return false, fmt.Errorf("checking scan dedup: %w", err)
	}
	return !ok, nil
}
