// Package bag implements bag and link management (C6): creating parent and
// child bags, linking a child under a parent, unlinking, and deleting a bag
// (hard delete, with an audit tombstone recording its prior state).
package bag

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeParent = "parent"
	TypeChild  = "child"
)

// Bag is a single tracked container, either a parent or a child.
type Bag struct {
	ID        uuid.UUID  `json:"id"`
	QRID      string     `json:"qr_id"`
	Type      string     `json:"type"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"` // populated for child bags with a link
}

// CreateRequest is the JSON body for POST /api/bags.
type CreateRequest struct {
	QRID  string `json:"qr_id" validate:"required,min=1,max=128"`
	Type  string `json:"type" validate:"required,oneof=parent child"`
	Notes string `json:"notes" validate:"max=2000"`
}

// LinkRequest is the JSON body for POST /api/bags/link.
type LinkRequest struct {
	ParentQRID string `json:"parent_qr_id" validate:"required"`
	ChildQRID  string `json:"child_qr_id" validate:"required"`
}
