package jobs

import "gitlab.com/baseline-2025.net/internal/domain"

// JobListResponse represents the jobs of a batch
type JobListResponse struct {
	Jobs   []*domain.Job  `json:"jobs"`
	Counts map[string]int `json:"counts"`
}
