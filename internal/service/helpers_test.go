package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
	"github.com/target/console-api/internal/mocks"
	"github.com/target/console-api/internal/testutil"
)

const testCallbackURL = "https://console.example.com/api/jobs/callback"

// storedJob stands in for a row: Update mocks apply the service's mutation to
// it the way the repository does inside its transaction.
type storedJob struct {
	mu  sync.Mutex
	job model.Job
}

func newStoredJob(j *model.Job) *storedJob { return &storedJob{job: *j} }

func (s *storedJob) update(_ context.Context, _ string, fn core.UpdateFunc) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.job
	if err := fn(&next); err != nil {
		return nil, err
	}
	s.job = next
	out := next
	return &out, nil
}

func (s *storedJob) snapshot() model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// eventLog records broadcasts in order.
type eventLog struct {
	mu     sync.Mutex
	orgs   []string
	events []model.JobEvent
}

func (l *eventLog) record(_ context.Context, org string, ev model.JobEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orgs = append(l.orgs, org)
	l.events = append(l.events, ev)
}

func (l *eventLog) all() ([]string, []model.JobEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.orgs...), append([]model.JobEvent(nil), l.events...)
}

type serviceDeps struct {
	repo        *mocks.MockJobRepository
	dispatcher  *mocks.MockDispatcher
	broadcaster *mocks.MockBroadcaster
}

func newServiceDeps(t *testing.T) serviceDeps {
	t.Helper()
	ctrl := gomock.NewController(t)
	return serviceDeps{
		repo:        mocks.NewMockJobRepository(ctrl),
		dispatcher:  mocks.NewMockDispatcher(ctrl),
		broadcaster: mocks.NewMockBroadcaster(ctrl),
	}
}

func (d serviceDeps) options() JobServiceOptions {
	return JobServiceOptions{
		Repo:        d.repo,
		Dispatcher:  d.dispatcher,
		Broadcaster: d.broadcaster,
		CallbackURL: testCallbackURL,
		Now:         func() time.Time { return testutil.TestTime() },
	}
}

func drain(t *testing.T, svc *JobService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
