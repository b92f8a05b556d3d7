package domain

import (
	"time"

	"github.com/google/uuid"
)

// Suite is a named test target within a team
type Suite struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	TeamSlug        string     `db:"team_slug" json:"team"`
	Slug            string     `db:"slug" json:"slug"`
	Name            string     `db:"name" json:"name"`
	BaselineBatchID *uuid.UUID `db:"baseline_batch_id" json:"baselineBatchId,omitempty"`
	BaselineVersion int64      `db:"baseline_version" json:"baselineVersion"`
	Subscribers     []string   `db:"-" json:"subscribers"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

func (s *Suite) HasSubscriber(subscriber string) bool {
	for _, sub := range s.Subscribers {
		if sub == subscriber {
			return true
		}
	}
	return false
}

type SuiteTable struct {
	ID              string
	TeamSlug        string
	Slug            string
	Name            string
	BaselineBatchID string
	BaselineVersion string
	CreatedAt       string
}

func GetSuiteTable() SuiteTable {
	return SuiteTable{
		ID:              "id",
		TeamSlug:        "team_slug",
		Slug:            "slug",
		Name:            "name",
		BaselineBatchID: "baseline_batch_id",
		BaselineVersion: "baseline_version",
		CreatedAt:       "created_at",
	}
}

func (SuiteTable) TableName() string {
	return "suites"
}

// PromotionRule names what caused a baseline change
type PromotionRule string

const (
	PromotionManual         PromotionRule = "manual"
	PromotionAutoFirstBatch PromotionRule = "auto:first-batch"
	PromotionAutoAllPass    PromotionRule = "auto:all-pass"
	PromotionReelect        PromotionRule = "reelect"
	PromotionCleared        PromotionRule = "cleared"
)

// PromotionRecord is an append-only audit entry of a baseline change.
// BatchID is nil when the suite was left without a baseline.
type PromotionRecord struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	SuiteID         uuid.UUID     `db:"suite_id" json:"suiteId"`
	BatchID         *uuid.UUID    `db:"batch_id" json:"batchId,omitempty"`
	PreviousBatchID *uuid.UUID    `db:"previous_batch_id" json:"previousBatchId,omitempty"`
	Rule            PromotionRule `db:"rule" json:"rule"`
	Reason          string        `db:"reason" json:"reason"`
	Actor           string        `db:"actor" json:"actor"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
}

// BaselineChange describes a version-checked update of a suite baseline pointer
type BaselineChange struct {
	SuiteID         uuid.UUID
	ExpectedVersion int64
	NewBaseline     *uuid.UUID
	Record          PromotionRecord
}
