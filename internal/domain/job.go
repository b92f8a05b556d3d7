package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a comparison job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition can happen
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// ErrorClass classifies a job failure
type ErrorClass string

const (
	ErrorClassTransient ErrorClass = "transient"
	ErrorClassPermanent ErrorClass = "permanent"
)

// Job compares one submitted element to one baseline element (or none)
type Job struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	BatchID            uuid.UUID  `db:"batch_id" json:"batchId"`
	SubmittedElementID uuid.UUID  `db:"submitted_element_id" json:"submittedElementId"`
	BaselineElementID  *uuid.UUID `db:"baseline_element_id" json:"baselineElementId,omitempty"`
	SubmittedHash      string     `db:"submitted_hash" json:"submittedHash"`
	BaselineHash       *string    `db:"baseline_hash" json:"baselineHash,omitempty"`
	DedupeKey          string     `db:"dedupe_key" json:"dedupeKey"`
	Status             JobStatus  `db:"status" json:"status"`
	Attempts           int        `db:"attempts" json:"attempts"`
	MaxAttempts        int        `db:"max_attempts" json:"maxAttempts"`
	LastError          *string    `db:"last_error" json:"lastError,omitempty"`
	ErrorClass         *string    `db:"error_class" json:"errorClass,omitempty"`
	AvailableAt        time.Time  `db:"available_at" json:"availableAt"`
	LeaseOwner         *string    `db:"lease_owner" json:"leaseOwner,omitempty"`
	LeaseToken         *uuid.UUID `db:"lease_token" json:"-"`
	LeaseExpiresAt     *time.Time `db:"lease_expires_at" json:"leaseExpiresAt,omitempty"`
	ResultKey          *string    `db:"result_key" json:"resultKey,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	StartedAt          *time.Time `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

type JobTable struct {
	ID                 string
	BatchID            string
	SubmittedElementID string
	BaselineElementID  string
	SubmittedHash      string
	BaselineHash       string
	DedupeKey          string
	Status             string
	Attempts           string
	MaxAttempts        string
	LastError          string
	ErrorClass         string
	AvailableAt        string
	LeaseOwner         string
	LeaseToken         string
	LeaseExpiresAt     string
	ResultKey          string
	CreatedAt          string
	StartedAt          string
	CompletedAt        string
}

func GetJobTable() JobTable {
	return JobTable{
		ID:                 "id",
		BatchID:            "batch_id",
		SubmittedElementID: "submitted_element_id",
		BaselineElementID:  "baseline_element_id",
		SubmittedHash:      "submitted_hash",
		BaselineHash:       "baseline_hash",
		DedupeKey:          "dedupe_key",
		Status:             "status",
		Attempts:           "attempts",
		MaxAttempts:        "max_attempts",
		LastError:          "last_error",
		ErrorClass:         "error_class",
		AvailableAt:        "available_at",
		LeaseOwner:         "lease_owner",
		LeaseToken:         "lease_token",
		LeaseExpiresAt:     "lease_expires_at",
		ResultKey:          "result_key",
		CreatedAt:          "created_at",
		StartedAt:          "started_at",
		CompletedAt:        "completed_at",
	}
}

func (JobTable) TableName() string {
	return "comparison_jobs"
}

// EnqueueRequest identifies the pair to compare
type EnqueueRequest struct {
	BatchID            uuid.UUID
	SubmittedElementID uuid.UUID
	SubmittedHash      string
	Baseline           *ElementRef
}

// EnqueueOutcome is returned by the queue. Duplicate marks the dedupe path.
type EnqueueOutcome struct {
	Job       *Job
	Duplicate bool
}

// Lease is what a worker holds while executing a claimed job
type Lease struct {
	JobID uuid.UUID
	Owner string
	Token uuid.UUID
}

func (j *Job) Lease() Lease {
	l := Lease{JobID: j.ID}
	if j.LeaseOwner != nil {
		l.Owner = *j.LeaseOwner
	}
	if j.LeaseToken != nil {
		l.Token = *j.LeaseToken
	}
	return l
}

// Verdict is the outcome of one comparison
type Verdict string

const (
	VerdictPass       Verdict = "pass"
	VerdictFail       Verdict = "fail"
	VerdictNoBaseline Verdict = "no_baseline"
)

// MismatchKind classifies a difference
type MismatchKind string

const (
	MismatchChanged MismatchKind = "changed"
	MismatchMissing MismatchKind = "missing"
	MismatchNew     MismatchKind = "new"
)

// Mismatch is one path-qualified difference
type Mismatch struct {
	Path      string       `json:"path"`
	Kind      MismatchKind `json:"kind"`
	Submitted *Value       `json:"submitted,omitempty"`
	Baseline  *Value       `json:"baseline,omitempty"`
	Score     float64      `json:"score"`
	Desc      []string     `json:"desc,omitempty"`
}

// MetricDiff reports a timing change; metrics do not affect the score
type MetricDiff struct {
	Key       string   `json:"key"`
	Submitted *float64 `json:"submitted,omitempty"`
	Baseline  *float64 `json:"baseline,omitempty"`
}

// ComparisonResult is the immutable outcome of a succeeded job
type ComparisonResult struct {
	Key           string       `json:"key"`
	SubmittedHash string       `json:"submittedHash"`
	BaselineHash  *string      `json:"baselineHash,omitempty"`
	Testcase      string       `json:"testcase"`
	Verdict       Verdict      `json:"verdict"`
	Matches       bool         `json:"matches"`
	Score         float64      `json:"score"`
	KeyCount      int          `json:"keyCount"`
	MatchCount    int          `json:"matchCount"`
	Mismatches    []Mismatch   `json:"mismatches"`
	Metrics       []MetricDiff `json:"metrics,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// FindMismatch returns the mismatch for path, or nil
func (r *ComparisonResult) FindMismatch(path string) *Mismatch {
	for i := range r.Mismatches {
		if r.Mismatches[i].Path == path {
			return &r.Mismatches[i]
		}
	}
	return nil
}

// ElementComparison is the query view of an element's comparison
type ElementComparison struct {
	Element *Element          `json:"element"`
	Job     *Job              `json:"job"`
	Result  *ComparisonResult `json:"result,omitempty"`
}
