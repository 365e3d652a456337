package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
	"github.com/shaiso/ynab-portal/internal/repo"
	ynabsync "github.com/shaiso/ynab-portal/internal/sync"
)

// --- admin ---

type fakeAdmin struct {
	records    map[string]repo.Record
	lastParams repo.ListParams
	deleted    []string
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{records: map[string]repo.Record{}}
}

func (f *fakeAdmin) List(_ context.Context, res *repo.Resource, p repo.ListParams) ([]repo.Record, int, error) {
	f.lastParams = p
	for name := range p.Filters {
		if _, ok := res.Column(name); !ok {
			return nil, 0, repo.ErrInvalidField
		}
	}
	var out []repo.Record
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (f *fakeAdmin) GetMany(_ context.Context, _ *repo.Resource, ids []string) ([]repo.Record, error) {
	var out []repo.Record
	for _, id := range ids {
		if r, ok := f.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAdmin) Get(_ context.Context, _ *repo.Resource, id string) (repo.Record, error) {
	if r, ok := f.records[id]; ok {
		return r, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeAdmin) Create(_ context.Context, res *repo.Resource, body map[string]any) (repo.Record, error) {
	if res.ReadOnly {
		return nil, repo.ErrInvalidState
	}
	id := uuid.NewString()
	rec := repo.Record{"id": id}
	for k, v := range body {
		rec[k] = v
	}
	f.records[id] = rec
	return rec, nil
}

func (f *fakeAdmin) Update(_ context.Context, _ *repo.Resource, id string, body map[string]any) (repo.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	for k, v := range body {
		rec[k] = v
	}
	return rec, nil
}

func (f *fakeAdmin) Delete(_ context.Context, res *repo.Resource, id string) (repo.Record, error) {
	if res.ReadOnly {
		return nil, repo.ErrInvalidState
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	delete(f.records, id)
	return rec, nil
}

func (f *fakeAdmin) DeleteMany(_ context.Context, _ *repo.Resource, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := f.records[id]; ok {
			delete(f.records, id)
			n++
		}
	}
	f.deleted = ids
	return n, nil
}

// --- sync ---

type fakeSyncer struct {
	err  error
	opts ynabsync.Options
}

func (f *fakeSyncer) Run(_ context.Context, job domain.Job, opts ynabsync.Options) (*ynabsync.Result, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &ynabsync.Result{Job: job, Message: "Created 2, updated 1.", Created: 2, Updated: 1}, nil
}

// --- runs ---

type fakeRuns struct {
	runs map[uuid.UUID]*domain.SyncRun
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{runs: map[uuid.UUID]*domain.SyncRun{}}
}

func (f *fakeRuns) Create(_ context.Context, run *domain.SyncRun) error {
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

func (f *fakeRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.SyncRun, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRuns) List(_ context.Context, filter repo.RunFilter) ([]domain.SyncRun, error) {
	var out []domain.SyncRun
	for _, r := range f.runs {
		if filter.Job != "" && r.Job != filter.Job {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRuns) Update(_ context.Context, run *domain.SyncRun) error {
	if _, ok := f.runs[run.ID]; !ok {
		return repo.ErrNotFound
	}
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

// only возвращает единственный run.
func (f *fakeRuns) only() *domain.SyncRun {
	for _, r := range f.runs {
		return r
	}
	return nil
}

type fakePublisher struct {
	published []*domain.SyncRun
	err       error
}

func (f *fakePublisher) PublishSyncRequested(_ context.Context, run *domain.SyncRun) error {
	f.published = append(f.published, run)
	return f.err
}

// --- schedules ---

type fakeSchedules struct {
	items map[uuid.UUID]*domain.SyncSchedule
}

func newFakeSchedules(items ...*domain.SyncSchedule) *fakeSchedules {
	f := &fakeSchedules{items: map[uuid.UUID]*domain.SyncSchedule{}}
	for _, s := range items {
		f.items[s.ID] = s
	}
	return f
}

func (f *fakeSchedules) Create(_ context.Context, s *domain.SyncSchedule) error {
	for _, existing := range f.items {
		if existing.Name == s.Name {
			return repo.ErrAlreadyExists
		}
	}
	stored := *s
	f.items[s.ID] = &stored
	return nil
}

func (f *fakeSchedules) GetByID(_ context.Context, id uuid.UUID) (*domain.SyncSchedule, error) {
	if s, ok := f.items[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeSchedules) List(_ context.Context, filter repo.ScheduleFilter) ([]domain.SyncSchedule, error) {
	var out []domain.SyncSchedule
	for _, s := range f.items {
		if filter.Enabled != nil && s.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSchedules) Update(_ context.Context, s *domain.SyncSchedule) error {
	if _, ok := f.items[s.ID]; !ok {
		return repo.ErrNotFound
	}
	stored := *s
	f.items[s.ID] = &stored
	return nil
}

func (f *fakeSchedules) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeSchedules) SetEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	s, ok := f.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	s.Enabled = enabled
	if !enabled {
		s.NextDueAt = nil
	}
	return nil
}

// --- reports store ---

type fakeReportStore struct {
	transactions []domain.TransactionRow
	savings      []domain.Saving
}

func (f *fakeReportStore) Transactions(context.Context, domain.TxFilter) ([]domain.TransactionRow, error) {
	return f.transactions, nil
}

func (f *fakeReportStore) CountUncategorised(context.Context) (int, error) { return 0, nil }

func (f *fakeReportStore) CategoryBudgets(context.Context) ([]domain.CategoryBudget, error) {
	return nil, nil
}

func (f *fakeReportStore) LoanRenewals(context.Context) ([]domain.LoanRenewal, error) {
	return nil, nil
}

func (f *fakeReportStore) Accounts(context.Context) ([]domain.Account, error) { return nil, nil }

func (f *fakeReportStore) Savings(_ context.Context, from, to time.Time) ([]domain.Saving, error) {
	return f.savings, nil
}

func (f *fakeReportStore) CardPayments(context.Context, time.Time) ([]domain.CardPaymentRow, error) {
	return nil, errors.New("card payments unavailable")
}
