package model

import (
	"encoding/json"
	"time"

	"github.com/jerry-enebeli/faxline/cost"
)

type Status string

const (
	StatusScheduled        Status = "SCHEDULED"
	StatusQueued           Status = "QUEUED"
	StatusSending          Status = "SENDING"
	StatusDelivered        Status = "DELIVERED"
	StatusFailed           Status = "FAILED"
	StatusBusy             Status = "BUSY"
	StatusNoAnswer         Status = "NO_ANSWER"
	StatusRetrying         Status = "RETRYING"
	StatusCancelled        Status = "CANCELLED"
	StatusPermanentFailure Status = "PERMANENT_FAILURE"
)

type Priority string

const (
	PriorityUrgent    Priority = "urgent"
	PriorityHigh      Priority = "high"
	PriorityNormal    Priority = "normal"
	PriorityLow       Priority = "low"
	PriorityScheduled Priority = "scheduled"
)

var Priorities = []interface{}{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow, PriorityScheduled}

type Type string

const (
	TypeBureau      Type = "bureau"
	TypeCreditor    Type = "creditor"
	TypeCollections Type = "collections"
	TypeGeneral     Type = "general"
)

var Types = []interface{}{TypeBureau, TypeCreditor, TypeCollections, TypeGeneral}

// JobError is the structured form of the last failure seen by a job.
type JobError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type FaxJob struct {
	ID                 string                 `json:"id"`
	DestinationNumber  string                 `json:"destination_number"`
	DestinationName    string                 `json:"destination_name"`
	DestinationKey     *string                `json:"destination_key,omitempty"`
	DocumentRef        string                 `json:"document_ref"`
	ClientRef          *string                `json:"client_ref,omitempty"`
	RelatedCaseRef     *string                `json:"related_case_ref,omitempty"`
	Type               Type                   `json:"type"`
	Priority           Priority               `json:"priority"`
	PageCount          int                    `json:"page_count"`
	Status             Status                 `json:"status"`
	RetryCount         int                    `json:"retry_count"`
	MaxRetries         int                    `json:"max_retries"`
	AutoRetry          bool                   `json:"auto_retry"`
	ScheduledFor       *time.Time             `json:"scheduled_for,omitempty"`
	CostEstimate       cost.Estimate          `json:"cost_estimate"`
	SuccessProbability float64                `json:"success_probability"`
	ProviderID         *string                `json:"provider_id,omitempty"`
	LastError          *JobError              `json:"last_error,omitempty"`
	OriginalJobID      *string                `json:"original_job_id,omitempty"`
	MetaData           map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

func (job *FaxJob) ToJSON() ([]byte, error) {
	return json.Marshal(job)
}

// Touch advances UpdatedAt without ever moving it backwards.
func (job *FaxJob) Touch(now time.Time) {
	if now.After(job.UpdatedAt) {
		job.UpdatedAt = now
	}
}

// RetriesExhausted reports whether the next failure must be terminal.
func (job *FaxJob) RetriesExhausted() bool {
	return job.RetryCount >= job.MaxRetries
}
