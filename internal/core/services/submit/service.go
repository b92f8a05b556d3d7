package submit

import (
	"context"

	"gitlab.com/baseline-2025.net/internal/domain"
)

// IIntakeService accepts testcase results from client libraries
type IIntakeService interface {
	Submit(ctx context.Context, sub domain.Submission) (*domain.Element, error)
}
