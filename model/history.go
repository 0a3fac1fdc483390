package model

import (
	"sort"
	"time"
)

// HistoryRecord is an append-only snapshot of a job taken at one transition.
type HistoryRecord struct {
	RecordID       string    `json:"record_id"`
	JobID          string    `json:"job_id"`
	Event          string    `json:"event"`
	PreviousStatus *Status   `json:"previous_status,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
	Job            FaxJob    `json:"job"`
}

func NewHistoryRecord(job FaxJob, previous *Status, event string, at time.Time) HistoryRecord {
	return HistoryRecord{
		RecordID:       GenerateUUIDWithSuffix("hist"),
		JobID:          job.ID,
		Event:          event,
		PreviousStatus: previous,
		RecordedAt:     at,
		Job:            job,
	}
}

// ScopeFilter narrows windowed history queries. Empty fields match everything.
type ScopeFilter struct {
	ClientRef string `json:"client_ref,omitempty"`
	Type      Type   `json:"type,omitempty"`
}

func (f ScopeFilter) IsEmpty() bool {
	return f.ClientRef == "" && f.Type == ""
}

// Match applies the filter to a single record.
func (f ScopeFilter) Match(rec HistoryRecord) bool {
	return f.MatchJob(rec.Job)
}

// MatchJob applies the filter to a job snapshot.
func (f ScopeFilter) MatchJob(job FaxJob) bool {
	if f.ClientRef != "" && (job.ClientRef == nil || *job.ClientRef != f.ClientRef) {
		return false
	}
	if f.Type != "" && job.Type != f.Type {
		return false
	}
	return true
}

// LatestPerJob collapses a record list to the newest snapshot of each job,
// ordered newest first.
func LatestPerJob(records []HistoryRecord) []HistoryRecord {
	latest := make(map[string]HistoryRecord, len(records))
	for _, rec := range records {
		cur, ok := latest[rec.JobID]
		if !ok || rec.RecordedAt.After(cur.RecordedAt) {
			latest[rec.JobID] = rec
		}
	}

	out := make([]HistoryRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	return out
}
