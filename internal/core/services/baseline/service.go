package baseline

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// IBaselineResolver finds the baseline counterpart of a testcase
type IBaselineResolver interface {
	// Resolve looks the testcase up in the current baseline of the suite
	Resolve(ctx context.Context, suiteID uuid.UUID, testcase string) (*domain.ElementRef, error)

	// ResolveIn looks the testcase up in a captured baseline batch. A nil
	// batch resolves to no baseline.
	ResolveIn(ctx context.Context, baselineBatchID *uuid.UUID, testcase string) (*domain.ElementRef, error)
}
