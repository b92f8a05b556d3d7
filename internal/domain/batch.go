package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchState represents the lifecycle state of a batch
type BatchState string

const (
	BatchStateOpen     BatchState = "open"
	BatchStateSealing  BatchState = "sealing"
	BatchStateSealed   BatchState = "sealed"
	BatchStatePromoted BatchState = "promoted"
	BatchStateArchived BatchState = "archived"
	BatchStateRemoved  BatchState = "removed"
)

var batchTransitions = map[BatchState][]BatchState{
	BatchStateOpen:     {BatchStateSealing, BatchStateRemoved},
	BatchStateSealing:  {BatchStateSealed, BatchStateRemoved},
	BatchStateSealed:   {BatchStatePromoted, BatchStateArchived, BatchStateRemoved},
	BatchStatePromoted: {BatchStateArchived, BatchStateRemoved},
	BatchStateArchived: {BatchStateRemoved},
}

// CanTransition reports whether from -> to is a legal forward transition
func (from BatchState) CanTransition(to BatchState) bool {
	for _, s := range batchTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Sealed reports whether the batch no longer takes part in comparison
func (s BatchState) Sealed() bool {
	return s == BatchStateSealed || s == BatchStatePromoted || s == BatchStateArchived
}

// Batch is one submission run of a suite version
type Batch struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	SuiteID            uuid.UUID  `db:"suite_id" json:"suiteId"`
	Version            string     `db:"version" json:"version"`
	State              BatchState `db:"state" json:"state"`
	SubmittedAt        time.Time  `db:"submitted_at" json:"submittedAt"`
	SealRequestedAt    *time.Time `db:"seal_requested_at" json:"sealRequestedAt,omitempty"`
	SealedAt           *time.Time `db:"sealed_at" json:"sealedAt,omitempty"`
	Promoted           bool       `db:"promoted" json:"promoted"`
	PromoteRequested   bool       `db:"promote_requested" json:"promoteRequested"`
	CapturedBaselineID *uuid.UUID `db:"captured_baseline_id" json:"capturedBaselineId,omitempty"`
}

type BatchTable struct {
	ID                 string
	SuiteID            string
	Version            string
	State              string
	SubmittedAt        string
	SealRequestedAt    string
	SealedAt           string
	Promoted           string
	PromoteRequested   string
	CapturedBaselineID string
}

func GetBatchTable() BatchTable {
	return BatchTable{
		ID:                 "id",
		SuiteID:            "suite_id",
		Version:            "version",
		State:              "state",
		SubmittedAt:        "submitted_at",
		SealRequestedAt:    "seal_requested_at",
		SealedAt:           "sealed_at",
		Promoted:           "promoted",
		PromoteRequested:   "promote_requested",
		CapturedBaselineID: "captured_baseline_id",
	}
}

func (BatchTable) TableName() string {
	return "batches"
}

// OpenedBatch is the outcome of opening a batch for submission
type OpenedBatch struct {
	Batch *Batch
	// Created is true when the batch did not exist before
	Created bool
	// Sealing lists prior open batches of the suite moved to sealing
	Sealing []*Batch
}

// BatchOverview aggregates the verdicts of a batch's elements
type BatchOverview struct {
	BatchID         uuid.UUID  `json:"batchId"`
	State           BatchState `json:"state"`
	ElementCount    int        `json:"elementCount"`
	PassCount       int        `json:"passCount"`
	FailCount       int        `json:"failCount"`
	PendingCount    int        `json:"pendingCount"`
	NoBaselineCount int        `json:"noBaselineCount"`
	BrokenCount     int        `json:"brokenCount"`
}

// Removal describes an atomic batch removal request
type Removal struct {
	BatchID uuid.UUID
	// Baseline is set when the batch is the current suite baseline
	Baseline *BaselineChange
	// Force skips the dependent open batch check, used when the whole suite goes
	Force bool
}
