package screens

import (
	"context"
	"strings"
	"sync"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// JobStatus looks up a single ESS job. It has no workflow state.
type JobStatus struct {
	guard
	backend Backend
	log     logging.Logger

	mu   sync.Mutex
	last *api.JobStatus
}

// NewJobStatus creates the job status controller.
func NewJobStatus(backend Backend, log logging.Logger) *JobStatus {
	return &JobStatus{backend: backend, log: log.With("jobs")}
}

// Check fetches the status of jobID.
func (j *JobStatus) Check(ctx context.Context, jobID string) (*api.JobStatus, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, &types.ValidationError{Fields: []string{"JobID"}, Message: "Please enter a job ID"}
	}
	if err := j.acquire(); err != nil {
		return nil, err
	}
	defer j.release()

	status, err := j.backend.CheckJobStatus(ctx, jobID)
	if err != nil {
		j.log.Warn("job lookup failed", "job_id", jobID, "error", err)
		return nil, err
	}

	j.mu.Lock()
	j.last = status
	j.mu.Unlock()

	j.log.Debug("job status", "job_id", status.JobID, "status", status.Status)
	return status, nil
}

// Last returns the last successful lookup, or nil.
func (j *JobStatus) Last() *api.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
