package pipeline_test

import (
	"context"
	"errors"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/events"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Coordinator", func() {
	var (
		ctx        context.Context
		cancel     context.CancelFunc
		s          store.Store
		researcher *fakeResearcher
		producer   *fakeProducer
		writer     *fakeWriter
		publisher  *fakePublisher
		rowCfg     pipeline.RowConfig
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		s = newMemoryStore()
		researcher = &fakeResearcher{}
		producer = &fakeProducer{}
		writer = &fakeWriter{}
		publisher = &fakePublisher{}
		rowCfg = testRowConfig()
	})

	AfterEach(func() {
		cancel()
		s.Close()
	})

	newCoordinator := func(d pipeline.Dispatcher, synth *fakeSynthesizer) *pipeline.Coordinator {
		if synth == nil {
			synth = &fakeSynthesizer{}
		}
		runner := pipeline.NewRowRunner(s.Progress(), researcher, synth, producer, fakeMatcher{}, rowCfg)
		return pipeline.NewCoordinator(s, runner, d, writer, 100, pipeline.WithEvents(publisher))
	}

	Context("batch jobs", func() {
		It("finalizes once with the failed row counted", func() {
			researcher.fn = func(p domain.Prospect, _ int) (*domain.Research, error) {
				if p.CompanyName == "Beta" {
					return nil, pipeline.Permanent(errors.New("unknown company"))
				}
				return &domain.Research{CompanyName: p.CompanyName, Overview: "ok"}, nil
			}
			d := pipeline.NewLocalDispatcher(ctx, 2)
			c := newCoordinator(d, nil)

			jobID, err := c.SubmitJob(ctx, prospects("Acme", "Beta", "Gamma"), pipeline.SubmitOptions{OriginalFileRef: "uploads/in.xlsx"})
			Expect(err).To(BeNil())
			d.Wait()

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusComplete))
			Expect(job.CompletedCount).To(Equal(2))
			Expect(job.FailedCount).To(Equal(1))
			Expect(job.OutputArtifactRef).To(Equal("outputs/" + jobID + ".xlsx"))
			Expect(job.OriginalFileRef).To(Equal("uploads/in.xlsx"))

			Expect(writer.Calls()).To(Equal(1))
			Expect(writer.rows).To(HaveLen(3))

			row, err := s.Progress().ReadRow(ctx, jobID, 3)
			Expect(err).To(BeNil())
			Expect(row.Status).To(Equal(model.RowStatusFailed))
			Expect(row.ErrorKind).To(Equal(model.ErrorKindPermanent))
			Expect(row.FailedStage).To(Equal(model.RowStatusResearching))
			Expect(row.Error).To(ContainSubstring("unknown company"))

			row, err = s.Progress().ReadRow(ctx, jobID, 2)
			Expect(err).To(BeNil())
			Expect(row.Status).To(Equal(model.RowStatusComplete))
			Expect(row.ArtifactURL).To(HavePrefix("https://gamma.app/docs/"))
			Expect(row.ExportURL).To(HaveSuffix(".pptx"))

			Expect(publisher.Count(events.RowMessageKind)).To(Equal(3))
			Expect(publisher.Count(events.JobMessageKind)).To(Equal(1))

			decks, err := s.Deck().List(ctx, store.NewDeckQueryFilter().ByJobID(jobID), store.NewDeckQueryOptions())
			Expect(err).To(BeNil())
			Expect(decks).To(HaveLen(2))
		})

		It("runs finalize exactly once when rows finish concurrently", func() {
			d := pipeline.NewLocalDispatcher(ctx, 12)
			c := newCoordinator(d, nil)

			names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
			jobID, err := c.SubmitJob(ctx, prospects(names...), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())
			d.Wait()

			Expect(writer.Calls()).To(Equal(1))
			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.CompletedCount).To(Equal(len(names)))
			Expect(job.Status).To(Equal(model.JobStatusComplete))
		})

		It("counts a never finishing generation as a timeout failure", func() {
			producer.script = []string{"processing"}
			d := pipeline.NewLocalDispatcher(ctx, 1)
			c := newCoordinator(d, nil)

			jobID, err := c.SubmitJob(ctx, prospects("Slowpoke"), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())
			d.Wait()

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusComplete))
			Expect(job.FailedCount).To(Equal(1))

			row, err := s.Progress().ReadRow(ctx, jobID, 2)
			Expect(err).To(BeNil())
			Expect(row.ErrorKind).To(Equal(model.ErrorKindTimeout))
			Expect(row.FailedStage).To(Equal(model.RowStatusCreatingArtifact))
		})

		It("fails the job when the result writer fails", func() {
			writer.err = errors.New("disk full")
			d := pipeline.NewLocalDispatcher(ctx, 2)
			c := newCoordinator(d, nil)

			jobID, err := c.SubmitJob(ctx, prospects("Acme", "Beta"), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())
			d.Wait()

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.Error).To(ContainSubstring("disk full"))
			Expect(job.CompletedCount).To(Equal(2))
		})

		It("turns a panicking stage into a failed row", func() {
			synth := &fakeSynthesizer{fn: func(p domain.Prospect) (*domain.Content, error) {
				if p.CompanyName == "Boom" {
					panic("nil map")
				}
				return &domain.Content{InputText: "# ok"}, nil
			}}
			d := pipeline.NewLocalDispatcher(ctx, 2)
			c := newCoordinator(d, synth)

			jobID, err := c.SubmitJob(ctx, prospects("Boom", "Fine"), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())
			d.Wait()

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusComplete))
			Expect(job.FailedCount).To(Equal(1))
			Expect(job.CompletedCount).To(Equal(1))

			row, err := s.Progress().ReadRow(ctx, jobID, 2)
			Expect(err).To(BeNil())
			Expect(row.ErrorKind).To(Equal(model.ErrorKindPermanent))
			Expect(row.FailedStage).To(Equal(model.RowStatusGeneratingContent))
		})

		It("fails rows that have not started once the job is cancelled", func() {
			d := &manualDispatcher{}
			c := newCoordinator(d, nil)

			jobID, err := c.SubmitJob(ctx, prospects("Acme", "Beta"), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())

			_, err = c.CancelJob(ctx, jobID)
			Expect(err).To(BeNil())
			d.RunAll(ctx)

			Expect(researcher.Calls("Acme")).To(Equal(0))
			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.FailedCount).To(Equal(2))
			Expect(job.Status).To(Equal(model.JobStatusComplete))

			row, err := s.Progress().ReadRow(ctx, jobID, 2)
			Expect(err).To(BeNil())
			Expect(row.ErrorKind).To(Equal(model.ErrorKindCancelled))
			Expect(row.FailedStage).To(Equal(model.RowStatusQueued))
		})

		It("does not count a redelivered row twice", func() {
			d := &manualDispatcher{}
			c := newCoordinator(d, nil)

			jobID, err := c.SubmitJob(ctx, prospects("Acme", "Beta"), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())
			tasks := append([]pipeline.RowTask(nil), d.tasks...)
			d.RunAll(ctx)

			for _, t := range tasks {
				Expect(c.ExecuteRow(ctx, t)).To(Succeed())
			}

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.CompletedCount).To(Equal(2))
			Expect(writer.Calls()).To(Equal(1))
			Expect(researcher.Calls("Acme")).To(Equal(1))
		})

		It("fails the job when finalize cannot read the rows", func() {
			flaky := newFlakyStore(s)
			flaky.progress.listFailures = 1
			d := &manualDispatcher{}
			runner := pipeline.NewRowRunner(flaky.Progress(), researcher, &fakeSynthesizer{}, producer, fakeMatcher{}, rowCfg)
			c := pipeline.NewCoordinator(flaky, runner, d, writer, 100)

			jobID, err := c.SubmitJob(ctx, prospects("Acme", "Beta"), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())
			tasks := append([]pipeline.RowTask(nil), d.tasks...)
			d.RunAll(ctx)

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.Error).To(ContainSubstring("connection reset"))
			Expect(job.CompletedCount).To(Equal(2))
			Expect(writer.Calls()).To(Equal(0))

			for _, t := range tasks {
				Expect(c.ExecuteRow(ctx, t)).To(Succeed())
			}
			job, err = s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
		})

		It("finalizes on redelivery when the job could not be failed", func() {
			flaky := newFlakyStore(s)
			flaky.progress.listFailures = 1
			flaky.progress.failJobFailures = 1
			d := &manualDispatcher{}
			runner := pipeline.NewRowRunner(flaky.Progress(), researcher, &fakeSynthesizer{}, producer, fakeMatcher{}, rowCfg)
			c := pipeline.NewCoordinator(flaky, runner, d, writer, 100)

			jobID, err := c.SubmitJob(ctx, prospects("Acme", "Beta"), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())
			tasks := append([]pipeline.RowTask(nil), d.tasks...)
			Expect(tasks).To(HaveLen(2))

			Expect(c.ExecuteRow(ctx, tasks[0])).To(Succeed())
			Expect(c.ExecuteRow(ctx, tasks[1])).To(MatchError(ContainSubstring("connection reset")))

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusProcessing))
			Expect(job.FinalizeClaimed).To(BeFalse())

			Expect(c.ExecuteRow(ctx, tasks[1])).To(Succeed())

			job, err = s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusComplete))
			Expect(job.CompletedCount).To(Equal(2))
			Expect(writer.Calls()).To(Equal(1))
			Expect(researcher.Calls("Beta")).To(Equal(1))
		})

		It("leaves a row stopped by shutdown for redelivery", func() {
			rowCtx, stop := context.WithCancel(ctx)
			researcher.fn = func(p domain.Prospect, call int) (*domain.Research, error) {
				if call == 1 {
					stop()
					return nil, rowCtx.Err()
				}
				return &domain.Research{CompanyName: p.CompanyName, Overview: "ok"}, nil
			}
			d := &manualDispatcher{}
			c := newCoordinator(d, nil)

			jobID, err := c.SubmitJob(ctx, prospects("Acme"), pipeline.SubmitOptions{})
			Expect(err).To(BeNil())
			task := d.tasks[0]

			err = c.ExecuteRow(rowCtx, task)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())

			row, err := s.Progress().ReadRow(ctx, jobID, task.RowIndex)
			Expect(err).To(BeNil())
			Expect(row.Status).To(Equal(model.RowStatusResearching))
			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Finished()).To(Equal(0))

			Expect(c.ExecuteRow(ctx, task)).To(Succeed())

			row, err = s.Progress().ReadRow(ctx, jobID, task.RowIndex)
			Expect(err).To(BeNil())
			Expect(row.Status).To(Equal(model.RowStatusComplete))
			Expect(row.Attempt).To(Equal(2))
			job, err = s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusComplete))
		})

		It("rejects empty and oversized submissions", func() {
			c := newCoordinator(&manualDispatcher{}, nil)

			_, err := c.SubmitJob(ctx, nil, pipeline.SubmitOptions{})
			Expect(errors.Is(err, pipeline.ErrNoItems)).To(BeTrue())

			many := make([]domain.Prospect, 101)
			for i := range many {
				many[i] = domain.Prospect{RowIndex: i + 2, CompanyName: "c"}
			}
			_, err = c.SubmitJob(ctx, many, pipeline.SubmitOptions{})
			Expect(errors.Is(err, pipeline.ErrTooManyItems)).To(BeTrue())

			_, err = c.SubmitJob(ctx, []domain.Prospect{{RowIndex: 2}}, pipeline.SubmitOptions{})
			Expect(errors.Is(err, pipeline.ErrInvalidItems)).To(BeTrue())
		})

		It("fails the job when rows cannot be dispatched", func() {
			d := &manualDispatcher{err: errors.New("queue down")}
			c := newCoordinator(d, nil)

			_, err := c.SubmitJob(ctx, prospects("Acme"), pipeline.SubmitOptions{})
			Expect(err).To(MatchError(ContainSubstring("queue down")))

			stats, err := s.Statistics(ctx)
			Expect(err).To(BeNil())
			Expect(stats.ByStatus[model.JobStatusFailed]).To(Equal(1))
		})
	})

	Context("single item jobs", func() {
		It("mirrors a completed row without finalize", func() {
			d := pipeline.NewLocalDispatcher(ctx, 1)
			c := newCoordinator(d, nil)

			jobID, err := c.SubmitSingleItem(ctx, domain.Prospect{CompanyName: "Acme", ContactName: "Jane"})
			Expect(err).To(BeNil())
			d.Wait()

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.IsSingle).To(BeTrue())
			Expect(job.Status).To(Equal(model.JobStatusComplete))
			Expect(job.OutputArtifactRef).To(BeEmpty())
			Expect(writer.Calls()).To(Equal(0))

			row, err := s.Progress().ReadRow(ctx, jobID, 0)
			Expect(err).To(BeNil())
			Expect(row.Status).To(Equal(model.RowStatusComplete))
		})

		It("mirrors a failed row", func() {
			researcher.fn = func(domain.Prospect, int) (*domain.Research, error) {
				return nil, pipeline.Permanent(errors.New("bad request"))
			}
			d := pipeline.NewLocalDispatcher(ctx, 1)
			c := newCoordinator(d, nil)

			jobID, err := c.SubmitSingleItem(ctx, domain.Prospect{CompanyName: "Acme"})
			Expect(err).To(BeNil())
			d.Wait()

			job, err := s.Progress().ReadJob(ctx, jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.Error).To(ContainSubstring("bad request"))
		})

		It("requires a company name", func() {
			c := newCoordinator(&manualDispatcher{}, nil)
			_, err := c.SubmitSingleItem(ctx, domain.Prospect{ContactName: "Jane"})
			Expect(errors.Is(err, pipeline.ErrInvalidItems)).To(BeTrue())
		})
	})

	It("refuses to dispatch before an executor is bound", func() {
		d := pipeline.NewLocalDispatcher(ctx, 1)
		Expect(d.Dispatch(ctx, pipeline.RowTask{JobID: "x"})).To(MatchError(pipeline.ErrDispatcherNotBound))
	})
})
