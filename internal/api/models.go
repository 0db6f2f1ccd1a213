package api

import (
	"time"

	"github.com/statuspulse/pulse-api/internal/watch"
)

// JobResponse is the wire form of a tracked analysis job.
type JobResponse struct {
	CustomerID  string    `json:"customer_id"`
	CompanyName string    `json:"company_name"`
	TaskID      string    `json:"task_id"`
	Phase       string    `json:"phase"`
	ObservedAt  time.Time `json:"observed_at"`
}

// JobListResponse wraps the tracked job set.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// NotificationResponse is the wire form of a completion notice.
type NotificationResponse struct {
	CustomerID  string    `json:"customer_id"`
	CompanyName string    `json:"company_name"`
	Success     bool      `json:"success"`
	FiredAt     time.Time `json:"fired_at"`
}

func newJobResponse(rec watch.JobRecord) JobResponse {
	return JobResponse{
		CustomerID:  rec.EntityID,
		CompanyName: rec.EntityLabel,
		TaskID:      rec.TaskID,
		Phase:       string(rec.Phase),
		ObservedAt:  rec.ObservedAt,
	}
}

func newJobListResponse(records []watch.JobRecord) JobListResponse {
	jobs := make([]JobResponse, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, newJobResponse(rec))
	}
	return JobListResponse{Jobs: jobs}
}

func newNotificationResponse(n watch.Notification) NotificationResponse {
	return NotificationResponse{
		CustomerID:  n.EntityID,
		CompanyName: n.EntityLabel,
		Success:     n.Success,
		FiredAt:     n.FiredAt,
	}
}
