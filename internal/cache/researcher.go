package cache

import (
	"context"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
)

// CachedResearcher serves research from the cache by company name.
type CachedResearcher struct {
	next  pipeline.Researcher
	cache *Cache[domain.Research]
}

var _ pipeline.Researcher = (*CachedResearcher)(nil)

func NewCachedResearcher(next pipeline.Researcher, cache *Cache[domain.Research]) *CachedResearcher {
	return &CachedResearcher{next: next, cache: cache}
}

func (c *CachedResearcher) Research(ctx context.Context, p domain.Prospect) (*domain.Research, error) {
	r, err := c.cache.GetOrCompute(ctx, p.NormalizedName(), func(ctx context.Context) (domain.Research, error) {
		r, err := c.next.Research(ctx, p)
		if err != nil {
			return domain.Research{}, err
		}
		return *r, nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
