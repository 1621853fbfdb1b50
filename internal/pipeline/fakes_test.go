package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/config"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	. "github.com/onsi/gomega"
)

func newMemoryStore() store.Store {
	cfg := config.NewDefault()
	cfg.Database.Type = "memory"
	db, err := store.InitDB(cfg)
	Expect(err).To(BeNil())

	s := store.NewStore(db)
	Expect(s.InitialMigration(context.TODO())).To(Succeed())
	return s
}

func testRowConfig() pipeline.RowConfig {
	adapter := pipeline.RetryPolicy{Attempts: 1, Backoff: time.Millisecond}
	return pipeline.RowConfig{
		RowRetries:  0,
		RowBackoff:  time.Millisecond,
		Research:    adapter,
		Synthesize:  adapter,
		Submit:      adapter,
		Poll:        pipeline.PollPolicy{Interval: time.Millisecond, MaxWait: 10 * time.Millisecond},
		TopServices: 3,
		Sleep:       func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}

func prospects(names ...string) []domain.Prospect {
	items := make([]domain.Prospect, 0, len(names))
	for i, n := range names {
		items = append(items, domain.Prospect{RowIndex: i + 2, CompanyName: n, Industry: "Retail"})
	}
	return items
}

type fakeResearcher struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(p domain.Prospect, call int) (*domain.Research, error)
}

func (f *fakeResearcher) Research(_ context.Context, p domain.Prospect) (*domain.Research, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[p.CompanyName]++
	call := f.calls[p.CompanyName]
	f.mu.Unlock()

	if f.fn != nil {
		return f.fn(p, call)
	}
	return &domain.Research{CompanyName: p.CompanyName, Overview: "overview of " + p.CompanyName, Depth: domain.ResearchDepthQuick}, nil
}

func (f *fakeResearcher) Calls(company string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[company]
}

type fakeSynthesizer struct {
	fn func(p domain.Prospect) (*domain.Content, error)
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, p domain.Prospect, _ domain.Research, services []domain.Service) (*domain.Content, error) {
	if f.fn != nil {
		return f.fn(p)
	}
	ids := make([]string, 0, len(services))
	for _, s := range services {
		ids = append(ids, s.ID)
	}
	return &domain.Content{
		Slides:     []domain.Slide{{Number: 1, Title: p.CompanyName, Body: "body"}},
		InputText:  "# " + p.CompanyName + "\n\nbody",
		ServiceIDs: ids,
	}, nil
}

// fakeProducer answers every status call from script, repeating its last entry.
type fakeProducer struct {
	mu      sync.Mutex
	script  []string
	polls   map[string]int
	submits int
	seq     int
}

func (f *fakeProducer) Submit(_ context.Context, inputText string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	f.seq++
	if f.polls == nil {
		f.polls = map[string]int{}
	}
	return fmt.Sprintf("gen-%d", f.seq), nil
}

func (f *fakeProducer) Status(_ context.Context, id string) (pipeline.PollStatus[domain.Artifact], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.polls[id]
	f.polls[id]++

	state := "completed"
	if len(f.script) > 0 {
		state = f.script[len(f.script)-1]
		if n < len(f.script) {
			state = f.script[n]
		}
	}
	switch state {
	case "completed":
		return pipeline.PollStatus[domain.Artifact]{
			Done:  true,
			State: state,
			Value: domain.Artifact{
				GenerationID: id,
				URL:          "https://gamma.app/docs/" + id,
				ExportURLs:   map[string]string{"pptx": "https://exports/" + id + ".pptx"},
			},
		}, nil
	case "failed":
		return pipeline.PollStatus[domain.Artifact]{}, pipeline.Permanent(fmt.Errorf("generation %s failed", id))
	default:
		return pipeline.PollStatus[domain.Artifact]{State: state}, nil
	}
}

type fakeMatcher struct{}

func (fakeMatcher) MatchServices(_ domain.Research, _ string, topN int) []domain.Service {
	all := []domain.Service{{ID: "data-enrichment", Name: "Data Enrichment"}, {ID: "intent-data", Name: "Intent Data"}}
	if topN < len(all) {
		return all[:topN]
	}
	return all
}

type fakeWriter struct {
	mu    sync.Mutex
	calls int
	rows  []model.Row
	err   error
}

func (f *fakeWriter) WriteResults(_ context.Context, job model.Job, rows []model.Row) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.rows = rows
	if f.err != nil {
		return "", f.err
	}
	return "outputs/" + job.ID + ".xlsx", nil
}

func (f *fakeWriter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingProgress keeps every status written for a row, in order.
type recordingProgress struct {
	store.Progress
	mu      sync.Mutex
	written map[int][]model.RowStatus
}

func newRecordingProgress(p store.Progress) *recordingProgress {
	return &recordingProgress{Progress: p, written: map[int][]model.RowStatus{}}
}

func (r *recordingProgress) WriteRowStatus(ctx context.Context, jobID string, rowIndex int, status model.RowStatus, fields model.RowFields) error {
	if err := r.Progress.WriteRowStatus(ctx, jobID, rowIndex, status, fields); err != nil {
		return err
	}
	r.mu.Lock()
	r.written[rowIndex] = append(r.written[rowIndex], status)
	r.mu.Unlock()
	return nil
}

func (r *recordingProgress) Written(rowIndex int) []model.RowStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.RowStatus(nil), r.written[rowIndex]...)
}

// manualDispatcher keeps tasks until the test runs them.
type manualDispatcher struct {
	mu    sync.Mutex
	exec  pipeline.RowExecutor
	tasks []pipeline.RowTask
	err   error
}

func (m *manualDispatcher) Bind(exec pipeline.RowExecutor) { m.exec = exec }

func (m *manualDispatcher) Dispatch(_ context.Context, tasks ...pipeline.RowTask) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, tasks...)
	return nil
}

func (m *manualDispatcher) RunAll(ctx context.Context) {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, t := range tasks {
		Expect(m.exec.ExecuteRow(ctx, t)).To(Succeed())
	}
}

type fakePublisher struct {
	mu    sync.Mutex
	kinds []string
}

func (f *fakePublisher) Publish(_ context.Context, kind string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return nil
}

func (f *fakePublisher) Count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// flakyProgress fails the next listFailures ListRows calls and the next
// failJobFailures FailJob calls.
type flakyProgress struct {
	store.Progress
	mu              sync.Mutex
	listFailures    int
	failJobFailures int
}

func (f *flakyProgress) ListRows(ctx context.Context, jobID string) ([]model.Row, error) {
	f.mu.Lock()
	if f.listFailures > 0 {
		f.listFailures--
		f.mu.Unlock()
		return nil, errors.New("connection reset by peer")
	}
	f.mu.Unlock()
	return f.Progress.ListRows(ctx, jobID)
}

func (f *flakyProgress) FailJob(ctx context.Context, jobID string, reason string) error {
	f.mu.Lock()
	if f.failJobFailures > 0 {
		f.failJobFailures--
		f.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	f.mu.Unlock()
	return f.Progress.FailJob(ctx, jobID, reason)
}

// flakyStore serves a flakyProgress in place of the real one.
type flakyStore struct {
	store.Store
	progress *flakyProgress
}

func newFlakyStore(s store.Store) *flakyStore {
	return &flakyStore{Store: s, progress: &flakyProgress{Progress: s.Progress()}}
}

func (f *flakyStore) Progress() store.Progress {
	return f.progress
}
