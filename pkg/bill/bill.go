// Package bill implements the bill assembly workflow (C8): creating a
// bill, attaching and detaching parent bags, finalizing it once full, and
// deleting an empty bill.
package bill

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusEmpty      = "empty"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Bill groups a fixed number of parent bags for weighing and invoicing.
type Bill struct {
	ID               uuid.UUID `json:"id"`
	BillID           string    `json:"bill_id"`
	ParentBagCount   int       `json:"parent_bag_count"`
	TotalWeightKG    float64   `json:"total_weight_kg"`
	ExpectedWeightKG float64   `json:"expected_weight_kg"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	AttachedBagIDs   []uuid.UUID `json:"attached_bag_ids,omitempty"`
}

// CreateRequest is the JSON body for POST /bills.
type CreateRequest struct {
	BillID         string `json:"bill_id" validate:"required,min=1,max=128"`
	ParentBagCount int    `json:"parent_bag_count" validate:"required,min=1"`
}

// AttachRequest is the JSON body for POST /bills/{id}/attach.
type AttachRequest struct {
	BagQRID string `json:"bag_qr_id" validate:"required"`
}
