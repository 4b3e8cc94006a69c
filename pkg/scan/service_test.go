package scan

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestFinish_EmptySessionReturnsEmptySlice(t *testing.T) {
	svc := NewService(nil, nil, nil)
	userID := uuid.New()

	result, err := svc.Finish(context.Background(), userID)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	if result.ParentID != nil {
		t.Errorf("ParentID = %v, want nil", result.ParentID)
	}
	if result.ChildIDs == nil {
		t.Error("ChildIDs should be an empty slice, not nil, so it serializes as [] rather than null")
	}
	if len(result.ChildIDs) != 0 {
		t.Errorf("ChildIDs = %v, want empty", result.ChildIDs)
	}
}

// TestFinish_ClearsSessionAfterReturning covers a parent-only session (no
// buffered children), so Finish never reaches the LinkBatch step and stays
// safe to exercise without a live bag store.
func TestFinish_ClearsSessionAfterReturning(t *testing.T) {
	svc := NewService(nil, nil, nil)
	userID := uuid.New()

	parentID := uuid.New()

	buf := svc.bufferFor(userID)
	buf.ParentID = &parentID

	first, err := svc.Finish(context.Background(), userID)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if first.ParentID == nil || *first.ParentID != parentID {
		t.Fatalf("ParentID = %v, want %v", first.ParentID, parentID)
	}
	if len(first.ChildIDs) != 0 {
		t.Fatalf("ChildIDs = %v, want empty", first.ChildIDs)
	}

	second, err := svc.Finish(context.Background(), userID)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if second.ParentID != nil {
		t.Errorf("session should be cleared after Finish, ParentID = %v", second.ParentID)
	}
	if len(second.ChildIDs) != 0 {
		t.Errorf("session should be cleared after Finish, ChildIDs = %v", second.ChildIDs)
	}
}

func TestBufferFor_PerUserIsolation(t *testing.T) {
	svc := NewService(nil, nil, nil)
	userA := uuid.New()
	userB := uuid.New()

	parentA := uuid.New()
	bufA := svc.bufferFor(userA)
	bufA.ParentID = &parentA

	bufB := svc.bufferFor(userB)
	if bufB.ParentID != nil {
		t.Errorf("user B's session should be independent of user A's, got ParentID = %v", bufB.ParentID)
	}
}
