package store_test

import (
	"context"
	"sync"
	"sync/atomic"

	st "github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("progress store", Ordered, func() {
	var (
		s   st.Store
		ctx = context.TODO()
	)

	BeforeAll(func() {
		s, _ = newMemoryStore()
	})

	AfterAll(func() {
		s.Close()
	})

	Context("create and read", func() {
		It("writes the job with every row before returning", func() {
			job, rows := newJob(3)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			found, err := s.Progress().ReadJob(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(found.Status).To(Equal(model.JobStatusProcessing))
			Expect(found.CompletedCount).To(Equal(0))
			Expect(found.FailedCount).To(Equal(0))

			list, err := s.Progress().ListRows(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(list).To(HaveLen(3))
			Expect(list[0].RowIndex).To(Equal(2))
			Expect(list[2].RowIndex).To(Equal(4))
		})

		It("rejects a duplicate job id", func() {
			job, rows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			again := *job
			err := s.Progress().CreateJob(ctx, &again, nil)
			Expect(err).To(MatchError(st.ErrDuplicateKey))
		})

		It("returns not found for unknown job and row", func() {
			_, err := s.Progress().ReadJob(ctx, "missing")
			Expect(err).To(MatchError(st.ErrRecordNotFound))

			_, err = s.Progress().ReadRow(ctx, "missing", 2)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("row status", func() {
		It("updates status and keeps earlier stage outputs", func() {
			job, rows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			research := []byte(`{"overview":"acme builds anvils"}`)
			Expect(s.Progress().WriteRowStatus(ctx, job.ID, 2, model.RowStatusResearching, model.RowFields{})).To(Succeed())
			Expect(s.Progress().WriteRowStatus(ctx, job.ID, 2, model.RowStatusGeneratingContent, model.RowFields{Research: research})).To(Succeed())

			msg := "content provider rejected the prompt"
			kind := model.ErrorKindPermanent
			ok, err := s.Progress().MarkRowTerminal(ctx, job.ID, 2, model.RowStatusFailed, model.RowFields{Error: &msg, ErrorKind: &kind})
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			row, err := s.Progress().ReadRow(ctx, job.ID, 2)
			Expect(err).To(BeNil())
			Expect(row.Status).To(Equal(model.RowStatusFailed))
			Expect(row.Error).To(Equal(msg))
			Expect(row.ErrorKind).To(Equal(model.ErrorKindPermanent))
			Expect(row.Research).To(MatchJSON(research))
		})

		It("never leaves a terminal status", func() {
			job, rows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			ok, err := s.Progress().MarkRowTerminal(ctx, job.ID, 2, model.RowStatusComplete, model.RowFields{})
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			ok, err = s.Progress().MarkRowTerminal(ctx, job.ID, 2, model.RowStatusFailed, model.RowFields{})
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())

			err = s.Progress().WriteRowStatus(ctx, job.ID, 2, model.RowStatusResearching, model.RowFields{})
			Expect(err).To(MatchError(st.ErrInvalidStatus))

			row, err := s.Progress().ReadRow(ctx, job.ID, 2)
			Expect(err).To(BeNil())
			Expect(row.Status).To(Equal(model.RowStatusComplete))
		})

		It("refuses terminal statuses through WriteRowStatus", func() {
			job, rows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			err := s.Progress().WriteRowStatus(ctx, job.ID, 2, model.RowStatusComplete, model.RowFields{})
			Expect(err).To(MatchError(st.ErrInvalidStatus))
		})

		It("reports a missing row when marking terminal", func() {
			_, err := s.Progress().MarkRowTerminal(ctx, "missing", 0, model.RowStatusComplete, model.RowFields{})
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("counters and finalize latch", func() {
		It("returns the totals as of each increment", func() {
			job, rows := newJob(3)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			j, err := s.Progress().IncrementJobCounter(ctx, job.ID, model.JobCounterCompleted)
			Expect(err).To(BeNil())
			Expect(j.Finished()).To(Equal(1))

			j, err = s.Progress().IncrementJobCounter(ctx, job.ID, model.JobCounterFailed)
			Expect(err).To(BeNil())
			Expect(j.CompletedCount).To(Equal(1))
			Expect(j.FailedCount).To(Equal(1))
			Expect(j.AllRowsTerminal()).To(BeFalse())

			claimed, err := s.Progress().ClaimFinalize(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(claimed).To(BeFalse())

			j, err = s.Progress().IncrementJobCounter(ctx, job.ID, model.JobCounterCompleted)
			Expect(err).To(BeNil())
			Expect(j.AllRowsTerminal()).To(BeTrue())
		})

		It("never lets completed+failed exceed total_rows", func() {
			job, rows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			_, err := s.Progress().IncrementJobCounter(ctx, job.ID, model.JobCounterCompleted)
			Expect(err).To(BeNil())

			_, err = s.Progress().IncrementJobCounter(ctx, job.ID, model.JobCounterFailed)
			Expect(err).To(MatchError(st.ErrCounterSaturated))

			found, err := s.Progress().ReadJob(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(found.Finished()).To(Equal(1))
		})

		It("hands the finalize latch to exactly one of many concurrent rows", func() {
			const total = 12
			job, rows := newJob(total)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			var (
				wg      sync.WaitGroup
				reached atomic.Int32
				claimed atomic.Int32
			)
			for i := 0; i < total; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()

					counter := model.JobCounterCompleted
					if i%3 == 0 {
						counter = model.JobCounterFailed
					}
					j, err := s.Progress().IncrementJobCounter(ctx, job.ID, counter)
					Expect(err).To(BeNil())
					if !j.AllRowsTerminal() {
						return
					}
					reached.Add(1)
					// duplicate terminal signal
					for k := 0; k < 2; k++ {
						ok, err := s.Progress().ClaimFinalize(ctx, job.ID)
						Expect(err).To(BeNil())
						if ok {
							claimed.Add(1)
						}
					}
				}(i)
			}
			wg.Wait()

			Expect(reached.Load()).To(Equal(int32(1)))
			Expect(claimed.Load()).To(Equal(int32(1)))

			found, err := s.Progress().ReadJob(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(found.CompletedCount).To(Equal(8))
			Expect(found.FailedCount).To(Equal(4))
		})
	})

	Context("finalize latch release", func() {
		It("lets the latch be claimed again while the job is not terminal", func() {
			job, rows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())
			_, err := s.Progress().IncrementJobCounter(ctx, job.ID, model.JobCounterCompleted)
			Expect(err).To(BeNil())

			claimed, err := s.Progress().ClaimFinalize(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(claimed).To(BeTrue())

			Expect(s.Progress().ReleaseFinalize(ctx, job.ID)).To(Succeed())

			claimed, err = s.Progress().ClaimFinalize(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(claimed).To(BeTrue())
		})

		It("keeps the latch of a finished job", func() {
			job, rows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())
			_, err := s.Progress().IncrementJobCounter(ctx, job.ID, model.JobCounterCompleted)
			Expect(err).To(BeNil())
			claimed, err := s.Progress().ClaimFinalize(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(claimed).To(BeTrue())
			Expect(s.Progress().CompleteJob(ctx, job.ID, "outputs/result.xlsx")).To(Succeed())

			Expect(s.Progress().ReleaseFinalize(ctx, job.ID)).To(Succeed())

			found, err := s.Progress().ReadJob(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(found.FinalizeClaimed).To(BeTrue())
		})
	})

	Context("job status", func() {
		It("is monotonic once terminal", func() {
			job, rows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			Expect(s.Progress().CompleteJob(ctx, job.ID, "outputs/result.xlsx")).To(Succeed())
			Expect(s.Progress().FailJob(ctx, job.ID, "late failure")).To(MatchError(st.ErrJobFinished))

			found, err := s.Progress().ReadJob(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(found.Status).To(Equal(model.JobStatusComplete))
			Expect(found.OutputArtifactRef).To(Equal("outputs/result.xlsx"))
			Expect(found.Error).To(BeEmpty())
		})

		It("cancels only running jobs", func() {
			job, rows := newJob(2)
			Expect(s.Progress().CreateJob(ctx, job, rows)).To(Succeed())

			cancelled, err := s.Progress().CancelJob(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(cancelled.Cancelled).To(BeTrue())

			done, doneRows := newJob(1)
			Expect(s.Progress().CreateJob(ctx, done, doneRows)).To(Succeed())
			Expect(s.Progress().FailJob(ctx, done.ID, "writer failed")).To(Succeed())

			_, err = s.Progress().CancelJob(ctx, done.ID)
			Expect(err).To(MatchError(st.ErrJobFinished))

			_, err = s.Progress().CancelJob(ctx, "missing")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})
})
