package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
	"github.com/target/console-api/internal/mocks"
	"github.com/target/console-api/internal/testutil"
)

type countingSink struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (s *countingSink) Count(name string, value int64, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = map[string]int64{}
	}
	s.counts[name] += value
}

func (s *countingSink) Timing(string, time.Duration, map[string]string) {}

func newTestReaper(t *testing.T, cfg config.ReaperConfig) (*ReaperService, *mocks.MockJobRepository, *mocks.MockBroadcaster, *countingSink) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	bc := mocks.NewMockBroadcaster(ctrl)
	sink := &countingSink{}
	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:        repo,
		Broadcaster: bc,
		Config:      cfg,
		Metrics:     sink,
		Now:         testutil.TestTime,
	})
	require.NoError(t, err)
	return svc, repo, bc, sink
}

func TestNewReaperService_RequiresDependencies(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{})
	require.Error(t, err)

	repo := mocks.NewMockJobRepository(gomock.NewController(t))
	_, err = NewReaperService(ReaperServiceOptions{Repo: repo})
	require.Error(t, err)
}

func TestReaperService_Sweep_FailsStaleJobs(t *testing.T) {
	cfg := config.ReaperConfig{StaleMaxAge: time.Hour, BatchSize: 10}
	svc, repo, bc, sink := newTestReaper(t, cfg)
	cutoff := testutil.TestTime().Add(-time.Hour)

	stale := testutil.NewJob().WithStatus(model.JobStatusProcessing).WithUpdatedAt(cutoff.Add(-time.Minute)).Build()
	row := newStoredJob(stale)
	events := &eventLog{}

	repo.EXPECT().ListStale(gomock.Any(), cutoff, 10).Return([]*model.Job{stale}, nil)
	repo.EXPECT().Update(gomock.Any(), stale.ID, gomock.Any()).DoAndReturn(row.update)
	bc.EXPECT().Broadcast(gomock.Any(), "org-a", gomock.Any()).Do(events.record)

	require.NoError(t, svc.Sweep(context.Background()))

	got := row.snapshot()
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, StaleJobReason, *got.Error)
	assert.Equal(t, "system", got.UpdatedBy)
	assert.Equal(t, testutil.TestTime(), got.UpdatedAt)

	_, evs := events.all()
	require.Len(t, evs, 1)
	assert.Equal(t, model.JobStatusFailed, evs[0].Job.Status)
	assert.Equal(t, int64(1), sink.counts["reaper.jobs_failed"])
	assert.Equal(t, int64(1), sink.counts["reaper.sweep"])
}

func TestReaperService_Sweep_SkipsJobsThatMovedOn(t *testing.T) {
	cfg := config.ReaperConfig{StaleMaxAge: time.Hour, BatchSize: 10}
	svc, repo, _, sink := newTestReaper(t, cfg)
	cutoff := testutil.TestTime().Add(-time.Hour)

	listed := testutil.NewJob().WithStatus(model.JobStatusPending).WithUpdatedAt(cutoff.Add(-time.Minute)).Build()
	// a callback landed between listing and the write
	completed := testutil.NewJob().WithStatus(model.JobStatusCompleted).WithUpdatedAt(testutil.TestTime()).Build()
	row := newStoredJob(completed)
	gone := testutil.NewJob().WithID("gone").WithUpdatedAt(cutoff.Add(-time.Minute)).Build()

	repo.EXPECT().ListStale(gomock.Any(), cutoff, 10).Return([]*model.Job{listed, gone}, nil)
	repo.EXPECT().Update(gomock.Any(), listed.ID, gomock.Any()).DoAndReturn(row.update)
	repo.EXPECT().Update(gomock.Any(), "gone", gomock.Any()).Return(nil, apperrors.NotFound("job not found"))

	require.NoError(t, svc.Sweep(context.Background()))
	assert.Equal(t, model.JobStatusCompleted, row.snapshot().Status)
	assert.Zero(t, sink.counts["reaper.jobs_failed"])
}

func TestReaperService_Sweep_PagesThroughFullBatches(t *testing.T) {
	cfg := config.ReaperConfig{StaleMaxAge: time.Hour, BatchSize: 2}
	svc, repo, bc, _ := newTestReaper(t, cfg)
	old := testutil.TestTime().Add(-2 * time.Hour)

	first := []*model.Job{
		testutil.NewJob().WithID("a").WithUpdatedAt(old).Build(),
		testutil.NewJob().WithID("b").WithUpdatedAt(old).Build(),
	}
	second := []*model.Job{testutil.NewJob().WithID("c").WithUpdatedAt(old).Build()}

	gomock.InOrder(
		repo.EXPECT().ListStale(gomock.Any(), gomock.Any(), 2).Return(first, nil),
		repo.EXPECT().ListStale(gomock.Any(), gomock.Any(), 2).Return(second, nil),
	)
	for _, j := range append(first, second...) {
		repo.EXPECT().Update(gomock.Any(), j.ID, gomock.Any()).DoAndReturn(newStoredJob(j).update)
	}
	bc.EXPECT().Broadcast(gomock.Any(), "org-a", gomock.Any()).Times(3)

	require.NoError(t, svc.Sweep(context.Background()))
}

func TestReaperService_Sweep_DeletesTerminalJobs(t *testing.T) {
	cfg := config.ReaperConfig{StaleMaxAge: time.Hour, TerminalMaxAge: 24 * time.Hour, BatchSize: 100}
	svc, repo, _, sink := newTestReaper(t, cfg)
	cutoff := testutil.TestTime().Add(-24 * time.Hour)

	repo.EXPECT().ListStale(gomock.Any(), gomock.Any(), 100).Return(nil, nil)
	gomock.InOrder(
		repo.EXPECT().DeleteTerminalBefore(gomock.Any(), cutoff, 100).Return(int64(100), nil),
		repo.EXPECT().DeleteTerminalBefore(gomock.Any(), cutoff, 100).Return(int64(7), nil),
		repo.EXPECT().DeleteTerminalBefore(gomock.Any(), cutoff, 100).Return(int64(0), nil),
	)

	require.NoError(t, svc.Sweep(context.Background()))
	assert.Equal(t, int64(107), sink.counts["reaper.jobs_deleted"])
}

func TestReaperService_Sweep_KeepsTerminalJobsByDefault(t *testing.T) {
	cfg := config.ReaperConfig{StaleMaxAge: time.Hour}
	svc, repo, _, _ := newTestReaper(t, cfg)

	repo.EXPECT().ListStale(gomock.Any(), gomock.Any(), 500).Return(nil, nil)
	// no DeleteTerminalBefore expectation: a call fails the test

	require.NoError(t, svc.Sweep(context.Background()))
}

func TestReaperService_Sweep_ReportsErrors(t *testing.T) {
	cfg := config.ReaperConfig{StaleMaxAge: time.Hour, TerminalMaxAge: time.Hour, BatchSize: 10}
	svc, repo, _, sink := newTestReaper(t, cfg)

	repo.EXPECT().ListStale(gomock.Any(), gomock.Any(), 10).Return(nil, errors.New("db down"))
	repo.EXPECT().DeleteTerminalBefore(gomock.Any(), gomock.Any(), 10).Return(int64(0), errors.New("db down"))

	err := svc.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail stale jobs")
	assert.Contains(t, err.Error(), "delete terminal jobs")
	assert.Equal(t, int64(1), sink.counts["reaper.sweep"])
}

func TestReaperService_Run(t *testing.T) {
	t.Run("requires interval", func(t *testing.T) {
		svc, _, _, _ := newTestReaper(t, config.ReaperConfig{})
		require.Error(t, svc.Run(context.Background()))
	})

	t.Run("stops on cancel", func(t *testing.T) {
		cfg := config.ReaperConfig{Interval: 10 * time.Millisecond, StaleMaxAge: time.Hour}
		svc, repo, _, _ := newTestReaper(t, cfg)

		swept := make(chan struct{}, 1)
		repo.EXPECT().ListStale(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, time.Time, int) ([]*model.Job, error) {
				select {
				case swept <- struct{}{}:
				default:
				}
				return nil, nil
			}).AnyTimes()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Run(ctx) }()

		select {
		case <-swept:
		case <-time.After(2 * time.Second):
			t.Fatal("reaper did not sweep")
		}
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("reaper did not stop")
		}
	})
}
