package jobs_test

import (
	"context"
	"errors"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/jobs"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

type recordingExecutor struct {
	tasks []pipeline.RowTask
	err   error
}

func (r *recordingExecutor) ExecuteRow(_ context.Context, task pipeline.RowTask) error {
	r.tasks = append(r.tasks, task)
	return r.err
}

func rowJob(args jobs.RowArgs) *river.Job[jobs.RowArgs] {
	return &river.Job[jobs.RowArgs]{JobRow: &rivertype.JobRow{ID: 7, Attempt: 1}, Args: args}
}

var _ = Describe("RowArgs", func() {
	It("returns the correct job kind", func() {
		Expect(jobs.RowArgs{}.Kind()).To(Equal("prospect_row"))
	})

	It("returns default insert options", func() {
		opts := jobs.RowArgs{}.InsertOpts()
		Expect(opts.Queue).To(Equal(jobs.DefaultQueue))
		Expect(opts.MaxAttempts).To(Equal(jobs.MaxJobAttempts))
	})
})

var _ = Describe("RowWorker", func() {
	It("leaves the row deadline to the pipeline", func() {
		Expect(jobs.NewRowWorker().Timeout(nil)).To(Equal(time.Duration(-1)))
	})

	It("refuses work before an executor is bound", func() {
		err := jobs.NewRowWorker().Work(context.TODO(), rowJob(jobs.RowArgs{JobID: "j", RowIndex: 2}))
		Expect(err).To(MatchError(jobs.ErrNoExecutor))
	})

	It("runs the bound executor for the row", func() {
		exec := &recordingExecutor{}
		w := jobs.NewRowWorker()
		w.Bind(exec)

		Expect(w.Work(context.TODO(), rowJob(jobs.RowArgs{JobID: "j", RowIndex: 3}))).To(Succeed())
		Expect(exec.tasks).To(Equal([]pipeline.RowTask{{JobID: "j", RowIndex: 3}}))
	})

	It("returns executor errors so River retries the row", func() {
		exec := &recordingExecutor{err: errors.New("database is locked")}
		w := jobs.NewRowWorker()
		w.Bind(exec)

		Expect(w.Work(context.TODO(), rowJob(jobs.RowArgs{JobID: "j"}))).To(MatchError("database is locked"))
	})

	It("does not start on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.TODO())
		cancel()
		err := jobs.NewRowWorker().Work(ctx, rowJob(jobs.RowArgs{}))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})
