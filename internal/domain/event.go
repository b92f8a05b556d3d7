package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a pipeline notification
type EventType string

const (
	EventSuiteNewBatch     EventType = "SuiteNewBatch"
	EventBatchSealed       EventType = "BatchSealed"
	EventBatchPromoted     EventType = "BatchPromoted"
	EventElementRegression EventType = "ElementRegression"
	EventBatchRemoved      EventType = "BatchRemoved"
	EventSuiteRemoved      EventType = "SuiteRemoved"
)

// Event is emitted for external delivery
type Event struct {
	Type          EventType  `json:"type"`
	TeamSlug      string     `json:"team"`
	SuiteSlug     string     `json:"suite"`
	SuiteID       uuid.UUID  `json:"suiteId"`
	BatchID       *uuid.UUID `json:"batchId,omitempty"`
	Version       string     `json:"version,omitempty"`
	ElementID     *uuid.UUID `json:"elementId,omitempty"`
	Testcase      string     `json:"testcase,omitempty"`
	SubscriberIDs []string   `json:"subscriberIds"`
	OccurredAt    time.Time  `json:"occurredAt"`
}

// Cache keys are scoped by team and suite slugs

func TeamSuitesCachePrefix(team string) string {
	return fmt.Sprintf("suites:%s:", team)
}

func SuiteCachePrefix(team, suite string) string {
	return fmt.Sprintf("suite:%s:%s:", team, suite)
}

func BatchOverviewCacheKey(team, suite string, batchID uuid.UUID) string {
	return fmt.Sprintf("%sbatch:%s:overview", SuiteCachePrefix(team, suite), batchID)
}
