// Package scan implements the scan pipeline (C7): recording a parent or
// child bag scan, short-window duplicate suppression, and finishing a
// scanning session.
package scan

import (
	"time"

	"github.com/google/uuid"
)

// Scan is a single recorded scan event.
type Scan struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	ParentBagID    *uuid.UUID `json:"parent_bag_id,omitempty"`
	ChildBagID     *uuid.UUID `json:"child_bag_id,omitempty"`
	ResponseTimeMS float64    `json:"response_time_ms"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ScanRequest is the JSON body for POST /scan/parent and POST /scan/child.
type ScanRequest struct {
	QRID           string  `json:"qr_id" validate:"required"`
	ResponseTimeMS float64 `json:"response_time_ms" validate:"gte=0"`
}

// duplicateWindow is the interval within which a repeated scan of the same
// QR code by the same user is suppressed as a duplicate, per spec §4.4.
const duplicateWindow = 200 * time.Millisecond
