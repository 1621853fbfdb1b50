package model

type JobStats struct {
	// Total number of jobs
	Total int
	// Number of jobs per status
	ByStatus map[JobStatus]int
	// Number of rows per status, across all jobs
	RowsByStatus map[RowStatus]int
	// Number of completed decks in the history
	TotalDecks int
}

func NewJobStats() JobStats {
	return JobStats{
		ByStatus:     map[JobStatus]int{},
		RowsByStatus: map[RowStatus]int{},
	}
}
