// Package stats serves the warehouse statistics dashboard (C5): a fast read
// path backed by the single-row statistics_cache table that triggers keep
// current on every bag/link/scan mutation, plus a periodic reconciliation
// loop that recomputes true counts and corrects any cache drift.
package stats

import "time"

// Snapshot mirrors the statistics_cache row.
type Snapshot struct {
	TotalBags        int64     `json:"total_bags"`
	ParentBags       int64     `json:"parent_bags"`
	ChildBags        int64     `json:"child_bags"`
	TotalLinks       int64     `json:"total_links"`
	TotalScans       int64     `json:"total_scans"`
	ScansToday       int64     `json:"scans_today"`
	ScansThisHour    int64     `json:"scans_this_hour"`
	ActiveUsersToday int64     `json:"active_users_today"`
	LastUpdated      time.Time `json:"last_updated"`
}
