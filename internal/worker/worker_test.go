package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/mq"
	"github.com/shaiso/ynab-portal/internal/repo"
	ynabsync "github.com/shaiso/ynab-portal/internal/sync"
	"github.com/shaiso/ynab-portal/internal/ynab"
)

// --- fakes ---

type fakeRuns struct {
	runs    map[uuid.UUID]*domain.SyncRun
	updated []domain.SyncRun
}

func newFakeRuns(runs ...*domain.SyncRun) *fakeRuns {
	f := &fakeRuns{runs: map[uuid.UUID]*domain.SyncRun{}}
	for _, r := range runs {
		f.runs[r.ID] = r
	}
	return f
}

func (f *fakeRuns) ListPending(_ context.Context, limit int) ([]domain.SyncRun, error) {
	var pending []domain.SyncRun
	for _, r := range f.runs {
		if r.Status == domain.RunStatusPending {
			pending = append(pending, *r)
		}
	}
	return pending, nil
}

func (f *fakeRuns) Claim(_ context.Context, id uuid.UUID) (*domain.SyncRun, error) {
	r, ok := f.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if r.Status != domain.RunStatusPending {
		return nil, repo.ErrInvalidState
	}
	r.MarkRunning()
	claimed := *r
	return &claimed, nil
}

func (f *fakeRuns) Update(_ context.Context, run *domain.SyncRun) error {
	f.updated = append(f.updated, *run)
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

type fakeSyncer struct {
	errs   []error
	calls  int
	result *ynabsync.Result
	opts   ynabsync.Options
}

func (f *fakeSyncer) Run(_ context.Context, job domain.Job, opts ynabsync.Options) (*ynabsync.Result, error) {
	f.calls++
	f.opts = opts
	if len(f.errs) >= f.calls && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	if f.result != nil {
		return f.result, nil
	}
	return &ynabsync.Result{Job: job, Message: "Created 1, updated 0.", Created: 1}, nil
}

type fakePublisher struct {
	completed []domain.SyncRun
}

func (f *fakePublisher) PublishSyncCompleted(_ context.Context, run *domain.SyncRun) error {
	f.completed = append(f.completed, *run)
	return nil
}

func newTestWorker(runs RunStore, syncer Syncer, pub Publisher) *Worker {
	return New(Config{
		Runs:      runs,
		Syncer:    syncer,
		Publisher: pub,
		Retry:     RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})
}

// --- ProcessRun ---

func TestProcessRun_Succeeded(t *testing.T) {
	run := domain.NewSyncRun(domain.JobAccounts, domain.TriggerAPI)
	run.Force = true
	runs := newFakeRuns(run)
	syncer := &fakeSyncer{}
	pub := &fakePublisher{}

	if err := newTestWorker(runs, syncer, pub).ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runs.runs[run.ID]
	if got.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", got.Status)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("started_at and finished_at should be set")
	}
	if !syncer.opts.Force {
		t.Error("force flag should be passed to syncer")
	}

	var result ynabsync.Result
	if err := json.Unmarshal(got.Result, &result); err != nil {
		t.Fatalf("result is not valid json: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("expected created=1, got %d", result.Created)
	}

	if len(pub.completed) != 1 || pub.completed[0].Status != domain.RunStatusSucceeded {
		t.Errorf("expected one sync.completed, got %+v", pub.completed)
	}
}

func TestProcessRun_SyncFailure(t *testing.T) {
	run := domain.NewSyncRun(domain.JobPayees, domain.TriggerScheduler)
	runs := newFakeRuns(run)
	syncer := &fakeSyncer{errs: []error{&ynab.APIError{Status: 401, ID: "401", Name: "unauthorized"}}}

	// ошибка синхронизации не является ошибкой обработки
	if err := newTestWorker(runs, syncer, nil).ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runs.runs[run.ID]
	if got.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED, got %s", got.Status)
	}
	if got.Error == "" {
		t.Error("error message should be stored")
	}
	if syncer.calls != 1 {
		t.Errorf("401 should not be retried, got %d calls", syncer.calls)
	}
}

func TestProcessRun_RetriesTransientErrors(t *testing.T) {
	run := domain.NewSyncRun(domain.JobTransactions, domain.TriggerScheduler)
	runs := newFakeRuns(run)
	syncer := &fakeSyncer{errs: []error{
		&ynab.APIError{Status: 429, ID: "429", Name: "too_many_requests"},
		&ynab.APIError{Status: 503, ID: "503", Name: "service_unavailable"},
	}}

	if err := newTestWorker(runs, syncer, nil).ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if syncer.calls != 3 {
		t.Errorf("expected 3 calls, got %d", syncer.calls)
	}
	if runs.runs[run.ID].Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED after retries, got %s", runs.runs[run.ID].Status)
	}
}

func TestProcessRun_RetryExhausted(t *testing.T) {
	run := domain.NewSyncRun(domain.JobAccounts, domain.TriggerScheduler)
	runs := newFakeRuns(run)
	limited := &ynab.APIError{Status: 429}
	syncer := &fakeSyncer{errs: []error{limited, limited, limited, limited}}

	if err := newTestWorker(runs, syncer, nil).ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if syncer.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", syncer.calls)
	}
	if runs.runs[run.ID].Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", runs.runs[run.ID].Status)
	}
}

func TestProcessRun_NotFound(t *testing.T) {
	w := newTestWorker(newFakeRuns(), &fakeSyncer{}, nil)
	if err := w.ProcessRun(context.Background(), uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestProcessRun_NotPending(t *testing.T) {
	run := domain.NewSyncRun(domain.JobAccounts, domain.TriggerAPI)
	run.MarkRunning()
	syncer := &fakeSyncer{}

	w := newTestWorker(newFakeRuns(run), syncer, nil)
	if err := w.ProcessRun(context.Background(), run.ID); !errors.Is(err, ErrRunNotPending) {
		t.Errorf("expected ErrRunNotPending, got %v", err)
	}
	if syncer.calls != 0 {
		t.Error("syncer should not be called")
	}
}

// --- Poll ---

func TestPoll_ProcessesPendingRuns(t *testing.T) {
	a := domain.NewSyncRun(domain.JobAccounts, domain.TriggerScheduler)
	b := domain.NewSyncRun(domain.JobPayees, domain.TriggerScheduler)
	done := domain.NewSyncRun(domain.JobCategories, domain.TriggerScheduler)
	done.MarkSucceeded(nil)
	runs := newFakeRuns(a, b, done)
	syncer := &fakeSyncer{}

	newTestWorker(runs, syncer, nil).Poll(context.Background())

	if syncer.calls != 2 {
		t.Errorf("expected 2 runs processed, got %d", syncer.calls)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		if runs.runs[id].Status != domain.RunStatusSucceeded {
			t.Errorf("run %s: expected SUCCEEDED, got %s", id, runs.runs[id].Status)
		}
	}
}

// --- handleSyncRequested ---

func TestHandleSyncRequested(t *testing.T) {
	run := domain.NewSyncRun(domain.JobMonthDetails, domain.TriggerAPI)
	runs := newFakeRuns(run)
	w := newTestWorker(runs, &fakeSyncer{}, nil)

	msg, err := mq.NewMessage(mq.MessageTypeSyncRequested, mq.SyncRequestedPayload{RunID: run.ID, Job: run.Job})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.handleSyncRequested(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs.runs[run.ID].Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", runs.runs[run.ID].Status)
	}

	// повторная доставка подтверждается без ошибки
	if err := w.handleSyncRequested(context.Background(), msg); err != nil {
		t.Errorf("redelivery should be acked, got %v", err)
	}

	// неизвестный run тоже
	msg, _ = mq.NewMessage(mq.MessageTypeSyncRequested, mq.SyncRequestedPayload{RunID: uuid.New()})
	if err := w.handleSyncRequested(context.Background(), msg); err != nil {
		t.Errorf("unknown run should be acked, got %v", err)
	}
}

func TestHandleSyncRequested_BadPayload(t *testing.T) {
	w := newTestWorker(newFakeRuns(), &fakeSyncer{}, nil)
	msg := &mq.Message{Type: mq.MessageTypeSyncRequested, Payload: json.RawMessage(`"oops"`)}
	if err := w.handleSyncRequested(context.Background(), msg); err == nil {
		t.Error("expected error for bad payload")
	}
}

// --- RetryPolicy ---

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	if p.MaxAttempts != 3 {
		t.Errorf("expected default 3 attempts, got %d", p.MaxAttempts)
	}

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, time.Minute, time.Minute}
	for i, w := range want {
		if got := p.backoff(i + 1); got != w {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&ynab.APIError{Status: 429}, true},
		{&ynab.APIError{Status: 500}, true},
		{&ynab.APIError{Status: 404}, false},
		{&ynab.APIError{Status: 401}, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
