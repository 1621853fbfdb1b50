package pipeline

import (
	"context"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
)

// Researcher gathers what is known about a prospect's company.
type Researcher interface {
	Research(ctx context.Context, p domain.Prospect) (*domain.Research, error)
}

// Synthesizer writes the deck content for a prospect.
type Synthesizer interface {
	Synthesize(ctx context.Context, p domain.Prospect, research domain.Research, services []domain.Service) (*domain.Content, error)
}

// Producer turns content into a document through a submit/poll exchange.
type Producer interface {
	Submit(ctx context.Context, inputText string, themeID string) (string, error)
	Status(ctx context.Context, generationID string) (PollStatus[domain.Artifact], error)
}

// ServiceMatcher ranks catalog services for a prospect.
type ServiceMatcher interface {
	MatchServices(research domain.Research, industry string, topN int) []domain.Service
}

// ResultWriter persists the aggregate output of a finished job.
type ResultWriter interface {
	WriteResults(ctx context.Context, job model.Job, rows []model.Row) (string, error)
}
