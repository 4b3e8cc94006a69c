package bill

import (
	"context"

	"github.com/google/uuid"

	"github.com/tracetrack/tracetrack/internal/telemetry"
	"github.com/tracetrack/tracetrack/internal/tterr"
	"github.com/tracetrack/tracetrack/pkg/bag"
)

// Service implements the bill assembly workflow on top of Store, resolving
// bag QR codes and enforcing the weight-expectation and status invariants.
type Service struct {
	store          *Store
	bags           *bag.Store
	parentWeightKG float64
}

// NewService creates a bill Service. parentWeightKG is the configured
// nominal weight of a single parent bag, used to derive a bill's expected
// total weight from its declared parent bag count.
func NewService(store *Store, bags *bag.Store, parentWeightKG float64) *Service {
	return &Service{store: store, bags: bags, parentWeightKG: parentWeightKG}
}

// Create starts a new, empty bill.
func (s *Service) Create(ctx context.Context, req CreateRequest, creatorID *uuid.UUID) (Bill, error) {
	expected := float64(req.ParentBagCount) * s.parentWeightKG
	return s.store.Create(ctx, req.BillID, req.ParentBagCount, expected, creatorID)
}

// Get fetches a bill by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Bill, error) {
	return s.store.Get(ctx, id)
}

// AttachParent resolves bagQRID to a parent bag and attaches it to billID.
// Its weight contribution is its current linked child count, capped at 30kg
// per §3's per-parent weight formula.
func (s *Service) AttachParent(ctx context.Context, billID uuid.UUID, bagQRID string) (Bill, error) {
	b, err := s.bags.GetByQRID(ctx, bagQRID)
	if err != nil {
		return Bill{}, err
	}
	if b.Type != bag.TypeParent {
		return Bill{}, tterr.Validation("only parent bags can be attached to a bill")
	}

	weightKG, err := s.parentContribution(ctx, b.ID)
	if err != nil {
		return Bill{}, err
	}

	if err := s.store.Attach(ctx, billID, b.ID, weightKG); err != nil {
		return Bill{}, err
	}
	return s.store.Get(ctx, billID)
}

// DetachParent resolves bagQRID to a parent bag and removes it from billID,
// reversing the same per-parent weight contribution AttachParent computed.
func (s *Service) DetachParent(ctx context.Context, billID uuid.UUID, bagQRID string) (Bill, error) {
	b, err := s.bags.GetByQRID(ctx, bagQRID)
	if err != nil {
		return Bill{}, err
	}

	weightKG, err := s.parentContribution(ctx, b.ID)
	if err != nil {
		return Bill{}, err
	}

	if err := s.store.Detach(ctx, billID, b.ID, weightKG); err != nil {
		return Bill{}, err
	}
	return s.store.Get(ctx, billID)
}

// maxParentWeightKG is the load cap for a single parent bag: beyond this
// many children a parent's weight contribution stops growing, per the
// weight invariant total_weight = sum(min(children_of(p), 30)).
const maxParentWeightKG = 30

// parentContribution returns parentID's contribution to a bill's total
// weight: the number of children currently linked under it, capped at
// maxParentWeightKG.
func (s *Service) parentContribution(ctx context.Context, parentID uuid.UUID) (float64, error) {
	children, err := s.bags.ChildrenOf(ctx, parentID)
	if err != nil {
		return 0, err
	}
	return cappedWeight(len(children)), nil
}

// cappedWeight applies the per-parent weight cap to a child count.
func cappedWeight(childCount int) float64 {
	return float64(min(childCount, maxParentWeightKG))
}

// Finalize closes out a bill once it holds its expected parent bag count.
func (s *Service) Finalize(ctx context.Context, billID uuid.UUID) (Bill, error) {
	b, err := s.store.Get(ctx, billID)
	if err != nil {
		return Bill{}, err
	}
	if len(b.AttachedBagIDs) != b.ParentBagCount {
		return Bill{}, tterr.Validation("bill does not yet hold its expected parent bag count")
	}

	if err := s.store.Finalize(ctx, billID); err != nil {
		return Bill{}, err
	}
	telemetry.BillsFinalizedTotal.Inc()

	return s.store.Get(ctx, billID)
}

// Delete removes an empty bill.
func (s *Service) Delete(ctx context.Context, billID uuid.UUID) error {
	return s.store.Delete(ctx, billID)
}
