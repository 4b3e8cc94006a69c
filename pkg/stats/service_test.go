package stats

import (
	"testing"

	"github.com/tracetrack/tracetrack/internal/auth"
)

func TestProjectView_RoleScoping(t *testing.T) {
	snap := Snapshot{
		TotalBags: 10, ParentBags: 4, ChildBags: 6,
		TotalLinks: 5, TotalScans: 20, ScansToday: 3,
		ScansThisHour: 1, ActiveUsersToday: 2,
	}

	tests := []struct {
		role           string
		wantParentNil  bool
		wantLinksNil   bool
		wantActiveNil  bool
	}{
		{auth.RoleDispatcher, true, true, true},
		{auth.RoleBiller, false, true, true},
		{auth.RoleAdmin, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			v := projectView(snap, tt.role)
			if (v.ParentBags == nil) != tt.wantParentNil {
				t.Errorf("role %s: ParentBags nil = %v, want %v", tt.role, v.ParentBags == nil, tt.wantParentNil)
			}
			if (v.TotalLinks == nil) != tt.wantLinksNil {
				t.Errorf("role %s: TotalLinks nil = %v, want %v", tt.role, v.TotalLinks == nil, tt.wantLinksNil)
			}
			if (v.ActiveUsersToday == nil) != tt.wantActiveNil {
				t.Errorf("role %s: ActiveUsersToday nil = %v, want %v", tt.role, v.ActiveUsersToday == nil, tt.wantActiveNil)
			}
			if v.TotalBags != snap.TotalBags {
				t.Errorf("TotalBags = %d, want %d", v.TotalBags, snap.TotalBags)
			}
		})
	}
}

func TestStatsEqual(t *testing.T) {
	a := Snapshot{TotalBags: 1, ParentBags: 1}
	b := Snapshot{TotalBags: 1, ParentBags: 1}
	if !statsEqual(a, b) {
		t.Error("expected equal snapshots to compare equal")
	}

	c := Snapshot{TotalBags: 2, ParentBags: 1}
	if statsEqual(a, c) {
		t.Error("expected differing snapshots to compare unequal")
	}
}
