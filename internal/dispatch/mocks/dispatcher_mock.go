package mocks

import (
	"context"
	"sync"

	"github.com/example/gallery-delivery/internal/dispatch"
)

// MockDispatcher records dispatched finalize jobs for testing.
type MockDispatcher struct {
	mu sync.Mutex

	Jobs        []dispatch.FinalizeJob
	DispatchErr error
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Dispatch(ctx context.Context, job dispatch.FinalizeJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Jobs = append(m.Jobs, job)
	return m.DispatchErr
}

// DispatchedJobs returns a copy of the recorded jobs.
func (m *MockDispatcher) DispatchedJobs() []dispatch.FinalizeJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]dispatch.FinalizeJob, len(m.Jobs))
	copy(jobs, m.Jobs)
	return jobs
}
