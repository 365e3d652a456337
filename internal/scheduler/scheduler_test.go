package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
)

var now = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

type fakeSchedules struct {
	items   []domain.SyncSchedule
	updated []domain.SyncSchedule
}

func (f *fakeSchedules) ListDue(_ context.Context, at time.Time, limit int) ([]domain.SyncSchedule, error) {
	var due []domain.SyncSchedule
	for _, s := range f.items {
		if s.IsDue(at) {
			due = append(due, s)
		}
	}
	return due, nil
}

func (f *fakeSchedules) ListMissingNextDue(context.Context) ([]domain.SyncSchedule, error) {
	var missing []domain.SyncSchedule
	for _, s := range f.items {
		if s.Enabled && s.NextDueAt == nil {
			missing = append(missing, s)
		}
	}
	return missing, nil
}

func (f *fakeSchedules) Update(_ context.Context, s *domain.SyncSchedule) error {
	f.updated = append(f.updated, *s)
	for i := range f.items {
		if f.items[i].ID == s.ID {
			f.items[i] = *s
		}
	}
	return nil
}

type fakeRuns struct {
	byKey     map[string]*domain.SyncRun
	createErr error
}

func (f *fakeRuns) Create(_ context.Context, run *domain.SyncRun) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byKey == nil {
		f.byKey = map[string]*domain.SyncRun{}
	}
	f.byKey[run.IdempotencyKey] = run
	return nil
}

func (f *fakeRuns) GetByIdempotencyKey(_ context.Context, key string) (*domain.SyncRun, error) {
	if run, ok := f.byKey[key]; ok {
		return run, nil
	}
	return nil, repo.ErrNotFound
}

type fakePublisher struct {
	published []*domain.SyncRun
	err       error
}

func (f *fakePublisher) PublishSyncRequested(_ context.Context, run *domain.SyncRun) error {
	f.published = append(f.published, run)
	return f.err
}

func schedule(name string, job domain.Job, cronExpr string, nextDue *time.Time) domain.SyncSchedule {
	return domain.SyncSchedule{
		ID:        uuid.New(),
		Name:      name,
		Job:       job,
		CronExpr:  cronExpr,
		Timezone:  "UTC",
		Enabled:   true,
		NextDueAt: nextDue,
	}
}

func newTestScheduler(s *fakeSchedules, r *fakeRuns, p Publisher) *Scheduler {
	return New(Config{
		Schedules: s,
		Runs:      r,
		Publisher: p,
		Now:       func() time.Time { return now },
	})
}

func TestTick_CreatesRunForDueSchedule(t *testing.T) {
	due := now.Add(-time.Minute)
	schedules := &fakeSchedules{items: []domain.SyncSchedule{
		schedule("accounts-hourly", domain.JobAccounts, "4 * * * *", &due),
	}}
	runs := &fakeRuns{}
	pub := &fakePublisher{}

	if err := newTestScheduler(schedules, runs, pub).Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.byKey) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs.byKey))
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published run, got %d", len(pub.published))
	}
	run := pub.published[0]
	if run.Job != domain.JobAccounts || run.Trigger != domain.TriggerScheduler || run.Status != domain.RunStatusPending {
		t.Errorf("unexpected run: %+v", run)
	}

	sched := schedules.items[0]
	wantNext := time.Date(2024, 6, 15, 11, 4, 0, 0, time.UTC)
	if sched.NextDueAt == nil || !sched.NextDueAt.Equal(wantNext) {
		t.Errorf("next due = %v, want %v", sched.NextDueAt, wantNext)
	}
	if sched.LastRunID == nil || *sched.LastRunID != run.ID {
		t.Error("last run id should point to created run")
	}
}

func TestTick_Idempotent(t *testing.T) {
	due := now.Add(-time.Minute)
	sched := schedule("payees-daily", domain.JobPayees, "0 3 * * *", &due)
	existing := domain.NewSyncRun(domain.JobPayees, domain.TriggerScheduler)

	runs := &fakeRuns{byKey: map[string]*domain.SyncRun{
		fmt.Sprintf("%s_%d", sched.ID, due.Unix()): existing,
	}}
	schedules := &fakeSchedules{items: []domain.SyncSchedule{sched}}
	pub := &fakePublisher{}

	if err := newTestScheduler(schedules, runs, pub).Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.byKey) != 1 {
		t.Errorf("duplicate run created: %d runs", len(runs.byKey))
	}
	if len(pub.published) != 0 {
		t.Error("existing run should not be republished")
	}
	// next_due_at всё равно сдвигается
	if got := schedules.items[0].NextDueAt; got == nil || !got.After(now) {
		t.Errorf("next due should move forward, got %v", got)
	}
}

func TestTick_NotDue(t *testing.T) {
	later := now.Add(time.Hour)
	schedules := &fakeSchedules{items: []domain.SyncSchedule{
		schedule("accounts-hourly", domain.JobAccounts, "4 * * * *", &later),
	}}
	runs := &fakeRuns{}

	if err := newTestScheduler(schedules, runs, nil).Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs.byKey) != 0 {
		t.Error("no run expected")
	}
}

func TestTick_SeedsMissingNextDue(t *testing.T) {
	schedules := &fakeSchedules{items: []domain.SyncSchedule{
		schedule("savings-monthly", domain.JobSavings, "0 6 1 * *", nil),
	}}
	runs := &fakeRuns{}

	if err := newTestScheduler(schedules, runs, nil).Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	got := schedules.items[0].NextDueAt
	if got == nil || !got.Equal(want) {
		t.Errorf("seeded next due = %v, want %v", got, want)
	}
	// засеянное расписание не запускается в том же тике
	if len(runs.byKey) != 0 {
		t.Error("seeded schedule should not run immediately")
	}
}

func TestTick_PublishFailureKeepsRun(t *testing.T) {
	due := now.Add(-time.Minute)
	schedules := &fakeSchedules{items: []domain.SyncSchedule{
		schedule("accounts-hourly", domain.JobAccounts, "4 * * * *", &due),
	}}
	runs := &fakeRuns{}
	pub := &fakePublisher{err: errors.New("broker down")}

	if err := newTestScheduler(schedules, runs, pub).Tick(context.Background()); err != nil {
		t.Fatalf("publish failure should not fail tick: %v", err)
	}
	if len(runs.byKey) != 1 {
		t.Error("run should be created despite publish failure")
	}
}

func TestTick_CreateFailureContinues(t *testing.T) {
	due := now.Add(-time.Minute)
	schedules := &fakeSchedules{items: []domain.SyncSchedule{
		schedule("a", domain.JobAccounts, "4 * * * *", &due),
		schedule("b", domain.JobPayees, "4 * * * *", &due),
	}}
	runs := &fakeRuns{createErr: errors.New("db down")}

	if err := newTestScheduler(schedules, runs, nil).Tick(context.Background()); err != nil {
		t.Fatalf("per-schedule errors should not fail tick: %v", err)
	}
	if len(schedules.updated) != 0 {
		t.Error("schedules should not advance when run creation fails")
	}
}

func TestCalculateNextDue_Timezone(t *testing.T) {
	sched := &domain.SyncSchedule{CronExpr: "0 9 * * *", Timezone: "Europe/Moscow"}
	got, err := CalculateNextDue(sched, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 09:00 MSK = 06:00 UTC, сегодняшнее уже прошло
	want := time.Date(2024, 6, 16, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.SyncSchedule{CronExpr: "0 12 * * *", Timezone: "Mars/Olympus"}
	got, err := CalculateNextDue(sched, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestValidateCronExpr(t *testing.T) {
	for _, expr := range []string{"4 * * * *", "30 4 */2 * *", "0 6 1 * *"} {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("%q: unexpected error: %v", expr, err)
		}
	}
	for _, expr := range []string{"", "* * *", "61 * * * *", "@every 5m"} {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("%q: expected error", expr)
		}
	}
}

func TestValidateTimezone(t *testing.T) {
	if err := ValidateTimezone("UTC"); err != nil {
		t.Error(err)
	}
	if err := ValidateTimezone(""); err != nil {
		t.Error(err)
	}
	if err := ValidateTimezone("Nowhere/City"); err == nil {
		t.Error("expected error")
	}
}
