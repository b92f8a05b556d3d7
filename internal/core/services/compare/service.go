package compare

import (
	"gitlab.com/baseline-2025.net/internal/domain"
)

// IComparisonEngine compares a submitted element with its baseline.
// Implementations must be pure: equal inputs give equal results.
type IComparisonEngine interface {
	// Compare returns a no_baseline result when baseline is nil
	Compare(submitted, baseline *domain.ElementData) *domain.ComparisonResult
}
