package metrics

import (
	"context"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

type StatsSource interface {
	Statistics(ctx context.Context) (model.JobStats, error)
}

// RunStatsUpdater refreshes the job, row and deck gauges on a jittered interval until ctx is done.
func RunStatsUpdater(ctx context.Context, source StatsSource, interval time.Duration) {
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10, Mean: 0})
	defer ticker.Stop()

	for {
		UpdateStats(ctx, source)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func UpdateStats(ctx context.Context, source StatsSource) {
	stats, err := source.Statistics(ctx)
	if err != nil {
		zap.S().Named("metrics").Errorf("failed to collect job statistics: %s", err)
		return
	}

	for _, s := range []model.JobStatus{model.JobStatusPending, model.JobStatusProcessing, model.JobStatusComplete, model.JobStatusFailed} {
		UpdateJobStatusMetric(string(s), stats.ByStatus[s])
	}
	for _, s := range []model.RowStatus{
		model.RowStatusQueued,
		model.RowStatusResearching,
		model.RowStatusGeneratingContent,
		model.RowStatusCreatingArtifact,
		model.RowStatusComplete,
		model.RowStatusFailed,
	} {
		UpdateRowStatusMetric(string(s), stats.RowsByStatus[s])
	}
	UpdateDecksCountMetric(stats.TotalDecks)
}
