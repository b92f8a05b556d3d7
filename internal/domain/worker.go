package domain

import "time"

// WorkerInfo represents a comparison worker registered with the pipeline
type WorkerInfo struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Capacity      int         `json:"capacity"`
	CurrentLoad   int         `json:"currentLoad"`
	LastHeartbeat time.Time   `json:"lastHeartbeat"`
	Hostname      string      `json:"hostname"`
	Version       string      `json:"version"`
	Stats         WorkerStats `json:"stats"`
	IsActive      bool        `json:"isActive"`
}

const WorkerTypeComparison = "comparison"

// WorkerStats is published by the reporter loop of a worker
type WorkerStats struct {
	Claimed         int64         `json:"claimed"`
	Processed       int64         `json:"processed"`
	Failed          int64         `json:"failed"`
	Discarded       int64         `json:"discarded"`
	AverageDuration time.Duration `json:"averageDuration"`
}
